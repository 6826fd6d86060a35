package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dshills/refract/internal/review"
)

// severityOrder is the display order for grouped findings, most severe first.
var severityOrder = []review.Severity{
	review.SeverityBlocking,
	review.SeverityMajor,
	review.SeverityMinor,
	review.SeverityNit,
	review.SeverityInfo,
}

// TextWriter outputs a human-readable text report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}

	ew.printf("Refract Code Review — %s mode\n", report.Inputs.Mode)
	if report.Inputs.PR != "" {
		ew.printf("Pull request: %s\n", report.Inputs.PR)
	}
	if report.Inputs.Range != "" {
		ew.printf("Range: %s\n", report.Inputs.Range)
	}
	if report.Repo.Root != "" {
		ew.printf("Repository: %s (branch: %s)\n", report.Repo.Root, report.Repo.Branch)
	}
	ew.printf("Backend: %s", report.Backend)
	if report.Model != "" {
		ew.printf(" (%s)", report.Model)
	}
	ew.println("")
	ew.println(strings.Repeat("─", 60))
	ew.printf("Score: %.0f/100\n", report.Score)
	ew.printf("Findings: %d total", report.Stats.Total)
	if report.Stats.Total > 0 {
		ew.printf(" (%d blocking, %d major, %d minor, %d nit)",
			report.Stats.Blocking,
			report.Stats.Major,
			report.Stats.Minor,
			report.Stats.Nit,
		)
	}
	ew.println("")
	ew.println(strings.Repeat("─", 60))

	if report.Stats.Total == 0 {
		ew.println("\nNo issues found. Looks good!")
		return ew.err
	}

	grouped := groupBySeverity(report.Findings)
	for _, sev := range severityOrder {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}

		label := strings.ToUpper(string(sev))
		ew.printf("\n%s %s\n", severityIcon(sev), label)
		ew.println(strings.Repeat("─", 40))

		sort.Slice(findings, func(i, j int) bool {
			if findings[i].File != findings[j].File {
				return findings[i].File < findings[j].File
			}
			return findings[i].LineHint < findings[j].LineHint
		})

		for _, f := range findings {
			ew.printf("\n  %s:%d  [%s]\n", f.File, f.LineHint, f.Category)
			if !f.IsDiagnostic() {
				ew.printf("  Confidence: %.0f%%\n", f.Confidence*100)
			}
			for _, line := range wrapText(f.Message, 70) {
				ew.printf("    %s\n", line)
			}
			if f.SuggestedPatch != "" {
				ew.println("  Suggested patch:")
				for _, line := range strings.Split(f.SuggestedPatch, "\n") {
					ew.printf("    | %s\n", line)
				}
			}
		}
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("Completed in %dms (fetch: %dms, review: %dms)\n",
		report.Timing.TotalMs, report.Timing.FetchMs, report.Timing.ReviewMs)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func groupBySeverity(findings []review.Finding) map[review.Severity][]review.Finding {
	m := make(map[review.Severity][]review.Finding)
	for _, f := range findings {
		m[f.Severity] = append(m[f.Severity], f)
	}
	return m
}

func severityIcon(s review.Severity) string {
	switch s {
	case review.SeverityBlocking:
		return "[!!]"
	case review.SeverityMajor:
		return "[!]"
	case review.SeverityMinor:
		return "[-]"
	case review.SeverityNit:
		return "[~]"
	case review.SeverityInfo:
		return "[i]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
