package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/refract/internal/review"
)

// JSONWriter emits the full report as indented JSON, including the report
// hash and per-stage timings. HTML escaping is disabled so code quoted in
// finding messages (a < b, &&, <-ch) survives as written.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, report *review.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding JSON report: %w", err)
	}
	return nil
}
