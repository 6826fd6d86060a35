package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dshills/refract/internal/review"
)

func TestTextWriter_NoFindings(t *testing.T) {
	report := &review.Report{
		Tool:     "refract",
		Version:  "1.0",
		Backend:  "remote-shell",
		Inputs:   review.InputInfo{Mode: "staged"},
		Repo:     review.RepoInfo{Root: "/tmp/repo", Branch: "main"},
		Score:    100,
		Findings: []review.Finding{},
	}

	var buf bytes.Buffer
	w := &TextWriter{}
	if err := w.Write(&buf, report); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "staged") {
		t.Error("output should mention mode")
	}
	if !strings.Contains(out, "Score: 100/100") {
		t.Error("output should show the score")
	}
	if !strings.Contains(out, "Findings: 0 total") {
		t.Error("output should show zero findings")
	}
	if !strings.Contains(out, "No issues found") {
		t.Error("output should say no issues found")
	}
}

func TestTextWriter_WithFindings(t *testing.T) {
	findings := []review.Finding{
		{
			File:           "main.go",
			Severity:       review.SeverityBlocking,
			Category:       review.CategorySecurity,
			Message:        "shell command built from user input",
			Confidence:     0.95,
			LineHint:       10,
			SuggestedPatch: "cmd := exec.Command(\"ls\", dir)",
		},
		{
			File:       "util.go",
			Severity:   review.SeverityNit,
			Category:   review.CategoryStyle,
			Message:    "line exceeds 120 characters",
			Confidence: 0.8,
			LineHint:   5,
		},
	}
	report := &review.Report{
		Tool:     "refract",
		Version:  "1.0",
		Backend:  "hosted-chat",
		Model:    "gpt-4o",
		Inputs:   review.InputInfo{Mode: "pr", PR: "dshills/refract#42"},
		Stats:    review.Aggregate(findings),
		Score:    55,
		Findings: findings,
		Timing:   review.Timing{FetchMs: 5, ReviewMs: 1000, TotalMs: 1005},
	}

	var buf bytes.Buffer
	w := &TextWriter{}
	if err := w.Write(&buf, report); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "1 blocking") {
		t.Error("output should show blocking count")
	}
	if !strings.Contains(out, "dshills/refract#42") {
		t.Error("output should show the PR reference")
	}
	if !strings.Contains(out, "main.go:10") {
		t.Error("output should show file:line")
	}
	if !strings.Contains(out, "shell command built from user input") {
		t.Error("output should contain the finding message")
	}
	if !strings.Contains(out, "Suggested patch:") {
		t.Error("output should show the suggested patch")
	}
	if !strings.Contains(out, "BLOCKING") {
		t.Error("output should have a BLOCKING section")
	}
	if !strings.Contains(out, "NIT") {
		t.Error("output should have a NIT section")
	}
	if !strings.Contains(out, "hosted-chat (gpt-4o)") {
		t.Error("output should show backend and model")
	}
	if !strings.Contains(out, "review: 1000ms") {
		t.Error("output should show review timing")
	}
}

func TestTextWriter_DiagnosticHasNoConfidence(t *testing.T) {
	findings := []review.Finding{
		{
			File:     "broken.go",
			Severity: review.SeverityInfo,
			Category: review.CategorySystem,
			Message:  "review unavailable: backend timeout",
		},
	}
	report := &review.Report{
		Backend:  "remote-shell",
		Inputs:   review.InputInfo{Mode: "staged"},
		Stats:    review.Aggregate(findings),
		Findings: findings,
	}

	var buf bytes.Buffer
	if err := (&TextWriter{}).Write(&buf, report); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "review unavailable") {
		t.Error("diagnostic message should be shown")
	}
	if strings.Contains(out, "Confidence:") {
		t.Error("diagnostics should not advertise a confidence")
	}
}

func TestWrapText(t *testing.T) {
	short := wrapText("short", 70)
	if len(short) != 1 || short[0] != "short" {
		t.Errorf("wrapText(short) = %v", short)
	}

	long := wrapText(strings.Repeat("word ", 40), 70)
	if len(long) < 2 {
		t.Errorf("long text should wrap, got %d lines", len(long))
	}
	for _, line := range long {
		if len(line) > 70 {
			t.Errorf("line exceeds width: %q", line)
		}
	}
}
