package review

import "strings"

// securityKeywords is the fixed vocabulary the escalation pass scans for.
// Substring matching is deliberate: "authentication" should trip "auth".
var securityKeywords = []string{
	"password", "secret", "key", "token", "auth", "login", "admin",
	"sql", "injection", "xss", "csrf", "eval", "exec", "shell",
	"file", "upload", "download", "path", "traversal", "overflow",
}

// ApplyHeuristics reclassifies findings whose message mentions
// security-sensitive vocabulary. A matching finding moves to the security
// category; if its severity is nit or minor it escalates to major with a
// confidence bump of 0.2 capped at 1.0. Findings already categorized
// security are left untouched, which is what makes a second pass over the
// same list a no-op. System diagnostics are skipped: their messages carry
// operational detail, not review content, and reclassifying them would hide
// which findings the pipeline synthesized.
//
// The slice is mutated in place and returned for convenience. It runs
// before [ApplySeverityOverrides] so an explicit guidelines policy has the
// last word.
func ApplyHeuristics(findings []Finding) []Finding {
	for i := range findings {
		f := &findings[i]
		if f.Category == CategorySecurity || f.Category == CategorySystem {
			continue
		}
		if !mentionsSecurity(f.Message) {
			continue
		}
		f.Category = CategorySecurity
		if f.Severity == SeverityNit || f.Severity == SeverityMinor {
			f.Severity = SeverityMajor
			f.Confidence = clamp01(f.Confidence + 0.2)
		}
	}
	return findings
}

func mentionsSecurity(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range securityKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
