package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dshills/refract/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *review.Report) error {
	fmt.Fprintf(w, "## Refract Code Review\n\n")
	fmt.Fprintf(w, "Score: **%.0f/100**\n\n", report.Score)

	fmt.Fprintf(w, "| Severity | Count |\n")
	fmt.Fprintf(w, "|----------|-------|\n")
	fmt.Fprintf(w, "| Blocking | %d |\n", report.Stats.Blocking)
	fmt.Fprintf(w, "| Major | %d |\n", report.Stats.Major)
	fmt.Fprintf(w, "| Minor | %d |\n", report.Stats.Minor)
	fmt.Fprintf(w, "| Nit | %d |\n", report.Stats.Nit)
	fmt.Fprintf(w, "| **Total** | **%d** |\n\n", report.Stats.Total)

	if report.Stats.Total == 0 {
		fmt.Fprintln(w, "No issues found. :white_check_mark:")
		return nil
	}

	grouped := groupBySeverity(report.Findings)
	for _, sev := range severityOrder {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}

		icon := mdSeverityIcon(sev)
		label := strings.ToUpper(string(sev))

		fmt.Fprintf(w, "<details>\n<summary>%s %s (%d)</summary>\n\n", icon, label, len(findings))

		sort.Slice(findings, func(i, j int) bool {
			if findings[i].File != findings[j].File {
				return findings[i].File < findings[j].File
			}
			return findings[i].LineHint < findings[j].LineHint
		})

		for _, f := range findings {
			fmt.Fprintf(w, "### `%s:%d`\n\n", f.File, f.LineHint)
			if f.IsDiagnostic() {
				fmt.Fprintf(w, "%s | %s\n\n", f.Category, f.Message)
			} else {
				fmt.Fprintf(w, "%s | Confidence: %.0f%%\n\n", f.Category, f.Confidence*100)
				fmt.Fprintf(w, "%s\n\n", f.Message)
			}

			if f.SuggestedPatch != "" {
				fmt.Fprintf(w, "**Suggested patch:**\n\n")
				fmt.Fprintf(w, "```%s\n%s\n```\n\n", inferLang(f.File), f.SuggestedPatch)
			}

			fmt.Fprintf(w, "---\n\n")
		}

		fmt.Fprintf(w, "</details>\n\n")
	}

	fmt.Fprintf(w, "*Reviewed in %dms (fetch: %dms, review: %dms)*\n",
		report.Timing.TotalMs, report.Timing.FetchMs, report.Timing.ReviewMs)

	return nil
}

func mdSeverityIcon(s review.Severity) string {
	switch s {
	case review.SeverityBlocking:
		return ":red_circle:"
	case review.SeverityMajor:
		return ":orange_circle:"
	case review.SeverityMinor:
		return ":yellow_circle:"
	case review.SeverityNit:
		return ":white_circle:"
	default:
		return ":information_source:"
	}
}

func inferLang(path string) string {
	langMap := map[string]string{
		".go":   "go",
		".py":   "python",
		".js":   "javascript",
		".ts":   "typescript",
		".tsx":  "tsx",
		".jsx":  "jsx",
		".rs":   "rust",
		".java": "java",
		".rb":   "ruby",
		".cpp":  "cpp",
		".c":    "c",
		".cs":   "csharp",
		".php":  "php",
		".sh":   "bash",
		".sql":  "sql",
		".yaml": "yaml",
		".yml":  "yaml",
		".json": "json",
		".tf":   "hcl",
	}
	for ext, lang := range langMap {
		if strings.HasSuffix(path, ext) {
			return lang
		}
	}
	return ""
}
