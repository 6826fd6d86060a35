package review

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/refract/internal/hunk"
)

// Diagnostic reasons, kept distinct so callers can tell a parse failure from
// a shape problem from a clean "nothing to report".
const (
	reasonUnparsable = "could not parse backend response as JSON"
	reasonBadShape   = "unexpected response shape, wanted a JSON array of findings"
	reasonEmpty      = "model returned no findings for this hunk"
)

// Normalize converts raw backend text into findings for one hunk. It is
// total: malformed output degrades to a single diagnostic finding, so every
// hunk that reaches the normalizer yields at least one finding.
//
// Accepted shapes are a bare JSON array of finding objects or an object
// wrapping such an array under a "findings" key. Markdown code fences around
// the JSON are tolerated. Non-object array elements are skipped; missing or
// mistyped fields default independently per field.
func Normalize(raw string, h hunk.Hunk) []Finding {
	var value any
	if err := json.Unmarshal([]byte(stripFences(raw)), &value); err != nil {
		return []Finding{Diagnostic(h, reasonUnparsable)}
	}

	var elems []any
	switch v := value.(type) {
	case []any:
		elems = v
	case map[string]any:
		inner, ok := v["findings"].([]any)
		if !ok {
			return []Finding{Diagnostic(h, reasonBadShape)}
		}
		elems = inner
	default:
		return []Finding{Diagnostic(h, reasonBadShape)}
	}

	findings := make([]Finding, 0, len(elems))
	for _, e := range elems {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		findings = append(findings, findingFromMap(m, h))
	}
	if len(findings) == 0 {
		return []Finding{Diagnostic(h, reasonEmpty)}
	}
	return findings
}

// Diagnostic builds the system finding substituted when genuine review
// output could not be produced for a hunk.
func Diagnostic(h hunk.Hunk, reason string) Finding {
	f := Finding{
		File:       h.FilePath,
		HunkHeader: h.HunkHeader,
		Severity:   SeverityInfo,
		Category:   CategorySystem,
		Message:    reason,
		Confidence: diagnosticConfidence,
		LineHint:   h.EndLine,
	}
	f.ID = findingID(f)
	return f
}

// findingFromMap builds one Finding from a decoded JSON object, defaulting
// each absent or mistyped field on its own.
func findingFromMap(m map[string]any, h hunk.Hunk) Finding {
	sev, _ := m["severity"].(string)
	cat, _ := m["category"].(string)

	f := Finding{
		File:           stringField(m, "file", h.FilePath),
		HunkHeader:     stringField(m, "hunk_header", h.HunkHeader),
		Severity:       ParseSeverity(sev),
		Category:       ParseCategory(cat),
		Message:        stringField(m, "message", "No message provided"),
		Confidence:     0.5,
		SuggestedPatch: stringField(m, "suggested_patch", ""),
		LineHint:       h.EndLine,
	}
	if c, ok := m["confidence"].(float64); ok {
		f.Confidence = clamp01(c)
	}
	if l, ok := m["line_hint"].(float64); ok {
		f.LineHint = int(l)
	}
	f.ID = findingID(f)
	return f
}

func stringField(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// findingID derives a short stable identifier from the fields that locate
// a finding, matching across runs for identical output.
func findingID(f Finding) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", f.File, f.LineHint, f.Message)))
	return hex.EncodeToString(sum[:])[:8]
}

// stripFences removes a surrounding markdown code fence, which models emit
// despite instructions not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
