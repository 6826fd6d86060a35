package hunk

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ExtractFile splits a single file's patch into hunks. The patch is the bare
// hunk text hosting APIs return per file, without diff --git or ---/+++
// header lines. An empty patch (binary or renamed files) yields no hunks.
func ExtractFile(path, patch, language string) ([]Hunk, error) {
	if strings.TrimSpace(patch) == "" {
		return nil, nil
	}
	parsed, err := diff.ParseHunks([]byte(patch))
	if err != nil {
		return nil, fmt.Errorf("parse patch for %s: %w", path, err)
	}
	hunks := make([]Hunk, 0, len(parsed))
	for _, dh := range parsed {
		hunks = append(hunks, convert(path, language, dh))
	}
	return hunks, nil
}

// ExtractDiff splits a full multi-file unified diff into hunks, detecting
// each file's language from its extension. File order and hunk order within
// a file are preserved.
func ExtractDiff(raw []byte) ([]Hunk, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	files, err := diff.ParseMultiFileDiff(raw)
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}
	var hunks []Hunk
	for _, fd := range files {
		path := diffPath(fd)
		lang := DetectLanguage(path)
		for _, dh := range fd.Hunks {
			hunks = append(hunks, convert(path, lang, dh))
		}
	}
	return hunks, nil
}

// diffPath picks the post-change path of a file diff, falling back to the
// pre-change path for deletions.
func diffPath(fd *diff.FileDiff) string {
	name := trimGitPrefix(fd.NewName)
	if name == "" || name == "/dev/null" {
		name = trimGitPrefix(fd.OrigName)
	}
	return name
}

func trimGitPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

func convert(path, language string, dh *diff.Hunk) Hunk {
	start := int(dh.NewStartLine)
	lines := int(dh.NewLines)
	end := start + lines - 1
	if lines == 0 {
		// Pure deletion hunk: no new-file range to point at.
		end = start
	}
	return Hunk{
		FilePath:   path,
		HunkHeader: formatHeader(int(dh.OrigStartLine), int(dh.OrigLines), start, lines, dh.Section),
		StartLine:  start,
		EndLine:    end,
		PatchText:  strings.TrimRight(string(dh.Body), "\n"),
		Language:   language,
	}
}
