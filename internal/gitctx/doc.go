// Package gitctx gathers local diffs for review by shelling out to git.
//
// [Staged] covers the index vs HEAD, [Range] covers a revision range, and
// both apply include/exclude glob filtering plus a byte-size cap before the
// diff reaches hunk extraction. [GetRepoMeta] reports the repository root,
// HEAD commit, and branch for report metadata.
package gitctx
