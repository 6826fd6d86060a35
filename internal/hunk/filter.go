package hunk

import "github.com/dshills/refract/internal/gitctx"

// Filter returns the hunks whose file path matches at least one include
// pattern and no exclude pattern. An empty include list admits every path.
// The input slice is never modified.
func Filter(hunks []Hunk, include, exclude []string) []Hunk {
	out := make([]Hunk, 0, len(hunks))
	for _, h := range hunks {
		if len(include) > 0 && !gitctx.MatchesAny(h.FilePath, include) {
			continue
		}
		if gitctx.MatchesAny(h.FilePath, exclude) {
			continue
		}
		out = append(out, h)
	}
	return out
}
