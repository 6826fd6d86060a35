package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dshills/refract/internal/review"
)

// Writer renders a report in one output format.
type Writer interface {
	Write(w io.Writer, report *review.Report) error
}

// Writers are stateless, so a single instance per format is shared.
var writers = map[string]Writer{
	"text":     &TextWriter{},
	"json":     &JSONWriter{},
	"markdown": &MarkdownWriter{},
	"sarif":    &SARIFWriter{},
}

// Formats returns the supported format names in sorted order.
func Formats() []string {
	names := make([]string, 0, len(writers))
	for name := range writers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetWriter returns the writer registered for format.
func GetWriter(format string) (Writer, error) {
	w, ok := writers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported output format: %s (want one of: %s)", format, strings.Join(Formats(), ", "))
	}
	return w, nil
}

// WriteReport renders the report to outPath, or to stdout when outPath is
// empty.
func WriteReport(report *review.Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	if outPath == "" {
		return writer.Write(os.Stdout, report)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	return writer.Write(f, report)
}
