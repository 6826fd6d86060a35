// Package hunk splits unified diffs into individually reviewable hunks.
//
// A [Hunk] carries the file path, the reconstructed @@ header, the new-file
// line range, and the hunk body. [ExtractDiff] parses a full multi-file diff
// and [ExtractFile] parses a single file's patch as returned by hosting APIs
// that omit the file header lines.
//
// [Bundle] is the on-disk interchange format between fetch and review: a PR
// reference plus per-file patches, serialized as JSON so a fetched diff can
// be reviewed later or on another machine.
package hunk
