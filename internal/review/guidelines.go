package review

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Guidelines is a project guidelines pack loaded from --guidelines. YAML and
// JSON files parse into the structured fields; any other file is carried as
// free text and inserted into prompts verbatim.
type Guidelines struct {
	Text              string            `json:"text,omitempty" yaml:"text,omitempty"`
	Focus             []string          `json:"focus,omitempty" yaml:"focus,omitempty"`
	Rules             []string          `json:"rules,omitempty" yaml:"rules,omitempty"`
	Required          []RequiredCheck   `json:"required,omitempty" yaml:"required,omitempty"`
	SeverityOverrides map[string]string `json:"severity_overrides,omitempty" yaml:"severity_overrides,omitempty"`
}

// RequiredCheck is a policy check the reviewer must always evaluate.
type RequiredCheck struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// LoadGuidelines loads a guidelines file from disk. Returns nil and no error
// if path is empty.
func LoadGuidelines(path string) (*Guidelines, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading guidelines file: %w", err)
	}

	var g Guidelines
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("parsing guidelines file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("parsing guidelines file: %w", err)
		}
	default:
		g.Text = string(data)
	}
	return &g, nil
}

// PromptSection renders the guidelines as prompt instructions. A nil or
// empty pack renders as the empty string.
func (g *Guidelines) PromptSection() string {
	if g == nil {
		return ""
	}

	var b strings.Builder

	if t := strings.TrimSpace(g.Text); t != "" {
		b.WriteString(t)
		b.WriteString("\n")
	}
	if len(g.Focus) > 0 {
		fmt.Fprintf(&b, "\nFocus areas: %s. Prioritize findings in these areas.\n",
			strings.Join(g.Focus, ", "))
	}
	if len(g.Rules) > 0 {
		b.WriteString("\nProject rules:\n")
		for _, r := range g.Rules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	if len(g.Required) > 0 {
		b.WriteString("\nRequired checks (always evaluate these):\n")
		for _, req := range g.Required {
			fmt.Fprintf(&b, "- [%s] %s\n", req.ID, req.Text)
		}
	}
	if len(g.SeverityOverrides) > 0 {
		b.WriteString("\nSeverity policy:\n")
		for _, cat := range sortedKeys(g.SeverityOverrides) {
			fmt.Fprintf(&b, "- %s findings should be rated as %s severity.\n", cat, g.SeverityOverrides[cat])
		}
	}

	return b.String()
}

// ApplySeverityOverrides enforces per-category severity overrides on a
// finding list after normalization. Override values go through ParseSeverity
// so the closed severity set holds no matter what the pack contains.
func ApplySeverityOverrides(findings []Finding, g *Guidelines) []Finding {
	if g == nil || len(g.SeverityOverrides) == 0 {
		return findings
	}
	for i := range findings {
		if override, ok := g.SeverityOverrides[string(findings[i].Category)]; ok {
			findings[i].Severity = ParseSeverity(override)
			findings[i].ID = findingID(findings[i])
		}
	}
	return findings
}

// Prompt order must be stable or identical runs would miss the cache.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
