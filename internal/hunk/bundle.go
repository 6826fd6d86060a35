package hunk

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// FilePatch is one changed file inside a Bundle.
type FilePatch struct {
	Path      string `json:"path"`
	Language  string `json:"language,omitempty"`
	Status    string `json:"status,omitempty"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch"`
}

// Bundle is the serialized form of a fetched pull request diff. It is what
// the fetch command writes and the review command's bundle mode reads.
type Bundle struct {
	PR        string      `json:"pr,omitempty"`
	HeadSHA   string      `json:"head_sha,omitempty"`
	BaseRef   string      `json:"base_ref,omitempty"`
	FetchedAt time.Time   `json:"fetched_at"`
	Files     []FilePatch `json:"files"`
}

// Hunks extracts every reviewable hunk from the bundle, in file order.
// Files without a usable patch are skipped; a malformed patch fails the
// whole extraction rather than dropping changes silently.
func (b *Bundle) Hunks() ([]Hunk, error) {
	var all []Hunk
	for _, f := range b.Files {
		lang := f.Language
		if lang == "" {
			lang = DetectLanguage(f.Path)
		}
		hs, err := ExtractFile(f.Path, f.Patch, lang)
		if err != nil {
			return nil, err
		}
		all = append(all, hs...)
	}
	return all, nil
}

// LoadBundle reads a bundle previously written by Save.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse bundle %s: %w", path, err)
	}
	return &b, nil
}

// Save writes the bundle as indented JSON.
func (b *Bundle) Save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	return nil
}
