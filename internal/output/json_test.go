package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/dshills/refract/internal/review"
)

func TestJSONWriter(t *testing.T) {
	report := &review.Report{
		Tool:    "refract",
		Version: "1.0",
		RunID:   "test-run",
		Backend: "hosted-chat",
		Model:   "gpt-4o",
		Inputs:  review.InputInfo{Mode: "pr", PR: "dshills/refract#42"},
		Stats:   review.ReviewStats{Blocking: 1, Total: 1},
		Score:   75,
		Hash:    "cafe",
		Findings: []review.Finding{
			{
				ID:         "abc",
				File:       "main.go",
				HunkHeader: "@@ -1,3 +1,4 @@",
				Severity:   review.SeverityBlocking,
				Category:   review.CategorySecurity,
				Message:    "credentials in source",
				Confidence: 0.9,
				LineHint:   3,
			},
		},
	}

	var buf bytes.Buffer
	w := &JSONWriter{}
	if err := w.Write(&buf, report); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var parsed review.Report
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if parsed.Tool != "refract" {
		t.Errorf("Tool = %q, want %q", parsed.Tool, "refract")
	}
	if parsed.Backend != "hosted-chat" {
		t.Errorf("Backend = %q", parsed.Backend)
	}
	if parsed.Hash != "cafe" {
		t.Errorf("Hash = %q, want cafe", parsed.Hash)
	}
	if len(parsed.Findings) != 1 {
		t.Fatalf("Findings count = %d, want 1", len(parsed.Findings))
	}
	if parsed.Findings[0].Message != "credentials in source" {
		t.Errorf("Finding message = %q", parsed.Findings[0].Message)
	}
	if parsed.Findings[0].LineHint != 3 {
		t.Errorf("LineHint = %d, want 3", parsed.Findings[0].LineHint)
	}
}

func TestGetWriter(t *testing.T) {
	for _, format := range []string{"text", "json", "markdown", "sarif"} {
		if _, err := GetWriter(format); err != nil {
			t.Errorf("GetWriter(%q) error: %v", format, err)
		}
	}
	if _, err := GetWriter("xml"); err == nil {
		t.Error("GetWriter(xml) should fail")
	}
}

func TestFormats(t *testing.T) {
	got := Formats()
	want := []string{"json", "markdown", "sarif", "text"}
	if len(got) != len(want) {
		t.Fatalf("Formats() = %v, want %v", got, want)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("Formats()[%d] = %q, want %q", i, got[i], name)
		}
	}
}
