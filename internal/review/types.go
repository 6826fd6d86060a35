package review

// Severity indicates how serious a finding is.
type Severity string

// Severity levels in descending order of importance. Info is the bucket for
// low-stakes observations and system diagnostics; it never gates a review.
const (
	SeverityBlocking Severity = "blocking"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityNit      Severity = "nit"
	SeverityInfo     Severity = "info"
)

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityBlocking:
		return 4
	case SeverityMajor:
		return 3
	case SeverityMinor:
		return 2
	case SeverityNit:
		return 1
	default:
		return 0
	}
}

// MeetsThreshold returns true if severity is at or above the threshold.
func MeetsThreshold(s Severity, threshold string) bool {
	if threshold == "none" || threshold == "" {
		return false
	}
	return SeverityRank(s) >= SeverityRank(Severity(threshold))
}

// ParseSeverity maps a model-emitted severity string onto the closed set.
// Models occasionally emit "critical", which folds into blocking; anything
// else unrecognized becomes info so it cannot gate a review.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityBlocking, SeverityMajor, SeverityMinor, SeverityNit, SeverityInfo:
		return Severity(s)
	}
	if s == "critical" {
		return SeverityBlocking
	}
	return SeverityInfo
}

// Category represents the type of finding.
type Category string

// Categories the reviewer rubric allows. System is reserved for pipeline
// diagnostics and is never requested from a model.
const (
	CategoryCorrectness Category = "correctness"
	CategorySecurity    Category = "security"
	CategoryPerformance Category = "performance"
	CategoryComplexity  Category = "complexity"
	CategoryStyle       Category = "style"
	CategoryTests       Category = "tests"
	CategoryDocs        Category = "docs"
	CategoryGeneral     Category = "general"
	CategorySystem      Category = "system"
)

var validCategories = map[Category]bool{
	CategoryCorrectness: true,
	CategorySecurity:    true,
	CategoryPerformance: true,
	CategoryComplexity:  true,
	CategoryStyle:       true,
	CategoryTests:       true,
	CategoryDocs:        true,
	CategoryGeneral:     true,
	CategorySystem:      true,
}

// ParseCategory maps a model-emitted category string onto the closed set,
// defaulting to general.
func ParseCategory(s string) Category {
	if validCategories[Category(s)] {
		return Category(s)
	}
	return CategoryGeneral
}

// diagnosticConfidence is the ceiling for system-generated findings, kept
// low so diagnostics are easy to separate from genuine review content.
const diagnosticConfidence = 0.1

// Finding represents a single code review observation tied to a hunk.
type Finding struct {
	ID             string   `json:"id,omitempty"`
	File           string   `json:"file"`
	HunkHeader     string   `json:"hunk_header"`
	Severity       Severity `json:"severity"`
	Category       Category `json:"category"`
	Message        string   `json:"message"`
	Confidence     float64  `json:"confidence"`
	SuggestedPatch string   `json:"suggested_patch,omitempty"`
	LineHint       int      `json:"line_hint"`
}

// IsDiagnostic reports whether the finding was synthesized by the pipeline
// rather than produced by a model.
func (f Finding) IsDiagnostic() bool {
	return f.Category == CategorySystem
}

// ReviewStats holds finding counts per severity bucket plus the total.
// Info findings count in Total only. Stats are always recomputed from a
// finding list, never maintained incrementally.
type ReviewStats struct {
	Blocking int `json:"blocking"`
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	Nit      int `json:"nit"`
	Total    int `json:"total"`
}

// RepoInfo contains repository metadata for locally reviewed changes.
type RepoInfo struct {
	Root   string `json:"root,omitempty"`
	Head   string `json:"head,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// InputInfo describes what was reviewed.
type InputInfo struct {
	Mode  string `json:"mode"`
	PR    string `json:"pr,omitempty"`
	Range string `json:"range,omitempty"`
	Path  string `json:"path,omitempty"`
}

// Timing contains per-stage durations in milliseconds.
type Timing struct {
	FetchMs  int64 `json:"fetch_ms"`
	ReviewMs int64 `json:"review_ms"`
	TotalMs  int64 `json:"total_ms"`
}

// Report is the top-level output structure handed to the writers.
type Report struct {
	Tool     string      `json:"tool"`
	Version  string      `json:"version"`
	RunID    string      `json:"run_id"`
	Backend  string      `json:"backend"`
	Model    string      `json:"model,omitempty"`
	Repo     RepoInfo    `json:"repo,omitempty"`
	Inputs   InputInfo   `json:"inputs"`
	Stats    ReviewStats `json:"stats"`
	Score    float64     `json:"score"`
	Hash     string      `json:"report_hash,omitempty"`
	Findings []Finding   `json:"findings"`
	Timing   Timing      `json:"timing"`
}
