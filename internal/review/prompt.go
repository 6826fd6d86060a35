package review

import (
	"fmt"
	"strings"

	"github.com/dshills/refract/internal/hunk"
)

const systemPrompt = `You are a strict, expert code reviewer examining one hunk of a pull request diff.

Rules:
1. Only review the changed lines shown in the hunk. Do not comment on unchanged code.
2. Focus on correctness, security, performance, and complexity. Avoid bikeshedding on style unless it genuinely hurts readability.
3. Be concise and actionable. Every finding must say what is wrong and why it matters.
4. Rate severity as "blocking", "major", "minor", or "nit".
5. Rate your confidence from 0.0 to 1.0.
6. Categorize each finding as one of: correctness, security, performance, complexity, style, tests, docs, general.
7. Set line_hint to the new-file line number the finding refers to.

You MUST respond with ONLY a JSON array of findings. No markdown, no explanation, no preamble. Just the JSON array.

Each finding must have this exact structure:
{
  "file": "relative/file/path",
  "hunk_header": "@@ -10,4 +10,6 @@",
  "severity": "blocking|major|minor|nit",
  "category": "correctness|security|performance|complexity|style|tests|docs|general",
  "message": "What is wrong and why it matters",
  "confidence": 0.0-1.0,
  "line_hint": 12,
  "suggested_patch": "replacement code, omit if you have none"
}

If there are no issues, respond with an empty array: []`

// SystemPrompt returns the reviewer rubric sent with every hunk.
func SystemPrompt() string {
	return systemPrompt
}

// BuildHunkPrompt constructs the user prompt for one hunk. The guidelines
// string, when present, is inserted verbatim as a project-guidelines
// section ahead of the hunk.
func BuildHunkPrompt(h hunk.Hunk, guidelines string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "File: %s\n", h.FilePath)
	if h.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", h.Language)
	}
	fmt.Fprintf(&b, "Hunk: %s\n", h.HunkHeader)
	fmt.Fprintf(&b, "New-file lines: %d-%d\n", h.StartLine, h.EndLine)

	if g := strings.TrimSpace(guidelines); g != "" {
		b.WriteString("\nProject guidelines:\n")
		b.WriteString(g)
		b.WriteString("\n")
	}

	b.WriteString("\n--- BEGIN HUNK ---\n")
	b.WriteString(h.PatchText)
	b.WriteString("\n--- END HUNK ---\n")

	return b.String()
}

// CombinedPrompt joins the rubric and the hunk prompt for transports that
// accept only a single prompt string.
func CombinedPrompt(h hunk.Hunk, guidelines string) string {
	return systemPrompt + "\n\n" + BuildHunkPrompt(h, guidelines)
}
