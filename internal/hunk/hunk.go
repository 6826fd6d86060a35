package hunk

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Hunk is one contiguous block of changed lines within a unified diff.
// Hunks are immutable once extracted; the review pipeline treats them as
// read-only units of work.
type Hunk struct {
	FilePath   string `json:"file_path"`
	HunkHeader string `json:"hunk_header"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	PatchText  string `json:"patch_text"`
	Language   string `json:"language,omitempty"`
}

// ID returns a short stable identifier for the hunk, suitable for logs and
// cache keys. Two hunks from the same file with the same header share an ID.
func (h Hunk) ID() string {
	return fmt.Sprintf("%s:%d", h.FilePath, h.StartLine)
}

// languageByExt maps file extensions to language names used in prompts.
var languageByExt = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".java":  "Java",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cc":    "C++",
	".hpp":   "C++",
	".cs":    "C#",
	".rb":    "Ruby",
	".rs":    "Rust",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".scala": "Scala",
	".sh":    "Shell",
	".bash":  "Shell",
	".sql":   "SQL",
	".tf":    "Terraform",
	".yaml":  "YAML",
	".yml":   "YAML",
	".json":  "JSON",
	".md":    "Markdown",
	".html":  "HTML",
	".css":   "CSS",
}

// DetectLanguage guesses the language of a file from its extension. Returns
// an empty string when the extension is unknown.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return languageByExt[ext]
}

// formatHeader reconstructs the @@ header line for a hunk's line ranges.
// The optional section is the function context git records after the ranges.
func formatHeader(origStart, origLines, newStart, newLines int, section string) string {
	header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", origStart, origLines, newStart, newLines)
	if section != "" {
		header += " " + section
	}
	return header
}
