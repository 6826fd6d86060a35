package gitctx

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractFiles(t *testing.T) {
	diff := `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
+import "fmt"
diff --git a/util.go b/util.go
--- a/util.go
+++ b/util.go
@@ -5,3 +5,4 @@
+func helper() {}
`
	files := extractFiles(diff)
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0] != "main.go" {
		t.Errorf("files[0] = %q, want %q", files[0], "main.go")
	}
	if files[1] != "util.go" {
		t.Errorf("files[1] = %q, want %q", files[1], "util.go")
	}
}

func TestExtractFiles_Dedup(t *testing.T) {
	diff := `+++ b/main.go
+++ b/main.go
`
	files := extractFiles(diff)
	if len(files) != 1 {
		t.Errorf("got %d files, want 1 (should dedup)", len(files))
	}
}

func TestExtractFiles_Empty(t *testing.T) {
	files := extractFiles("")
	if len(files) != 0 {
		t.Errorf("got %d files from empty diff, want 0", len(files))
	}
}

func TestFilterExcluded(t *testing.T) {
	diff := `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
+import "fmt"
diff --git a/vendor/lib.go b/vendor/lib.go
--- a/vendor/lib.go
+++ b/vendor/lib.go
@@ -1,3 +1,4 @@
+package lib
`
	result := filterExcluded(diff, []string{"vendor/**"})
	if strings.Contains(result, "vendor/lib.go") {
		t.Error("vendor/lib.go should be excluded")
	}
	if !strings.Contains(result, "main.go") {
		t.Error("main.go should be kept")
	}
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"vendor/lib.go", []string{"vendor/**"}, true},
		{"vendor/sub/lib.go", []string{"vendor/**"}, true},
		{"main.go", []string{"vendor/**"}, false},
		{"vendored/lib.go", []string{"vendor/**"}, false},
		{"foo.gen.go", []string{"**/*.gen.go"}, true},
		{"pkg/foo.gen.go", []string{"**/*.gen.go"}, true},
		{"foo.go", []string{"**/*.gen.go"}, false},
		{"dist/bundle.js", []string{"**/dist/**"}, true},
		{"web/dist/bundle.js", []string{"**/dist/**"}, true},
		{"distx/bundle.js", []string{"**/dist/**"}, false},
		{"main.go", []string{"*.go"}, true},
		{"pkg/main.go", []string{"*.go"}, false},
		{".env", []string{"**/.env"}, true},
		{"config/.env", []string{"**/.env"}, true},
		{"prod-secrets.yaml", []string{"**/*secrets*"}, true},
		{"anything/at/all.txt", []string{"**/*"}, true},
	}
	for _, tt := range tests {
		got := MatchesAny(tt.path, tt.patterns)
		if got != tt.want {
			t.Errorf("MatchesAny(%q, %v) = %v, want %v", tt.path, tt.patterns, got, tt.want)
		}
	}
}

func TestMatchesAny_EmptyPatterns(t *testing.T) {
	if MatchesAny("main.go", nil) {
		t.Error("MatchesAny with nil patterns should return false")
	}
	if MatchesAny("main.go", []string{}) {
		t.Error("MatchesAny with empty patterns should return false")
	}
}

func TestSplitDiffSections(t *testing.T) {
	diff := `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ -1,3 +1,4 @@
+line1
diff --git a/b.go b/b.go
--- a/b.go
+++ b/b.go
@@ -1,3 +1,4 @@
+line2
`
	sections := splitDiffSections(diff)
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if !strings.Contains(sections[0], "a.go") {
		t.Error("section 0 should contain a.go")
	}
	if !strings.Contains(sections[1], "b.go") {
		t.Error("section 1 should contain b.go")
	}
}

func TestBuildDiffArgs(t *testing.T) {
	opts := DiffOptions{
		ContextLines: 5,
		Include:      []string{"*.go"},
	}
	args := buildDiffArgs(opts)
	if args[0] != "-U5" {
		t.Errorf("args[0] = %q, want %q", args[0], "-U5")
	}
	found := false
	for _, a := range args {
		if a == "--" {
			found = true
		}
	}
	if !found {
		t.Error("args should contain -- separator")
	}
	if args[len(args)-1] != "*.go" {
		t.Errorf("last arg = %q, want %q", args[len(args)-1], "*.go")
	}
}

func TestBuildDiffArgs_DefaultInclude(t *testing.T) {
	args := buildDiffArgs(DiffOptions{Include: []string{"**/*"}})
	for _, a := range args {
		if a == "**/*" {
			t.Error("**/* should not be passed as a git path filter")
		}
	}
}

func TestBuildDiffArgs_NoContextLines(t *testing.T) {
	args := buildDiffArgs(DiffOptions{Include: []string{"*.go"}})
	for _, a := range args {
		if strings.HasPrefix(a, "-U") {
			t.Error("should not have -U flag with ContextLines=0")
		}
	}
}

func TestExtractPathFromSection(t *testing.T) {
	section := "diff --git a/main.go b/main.go\n--- a/main.go\n+++ b/main.go\n@@ -1,3 +1,4 @@\n+import\n"
	path := extractPathFromSection(section)
	if path != "main.go" {
		t.Errorf("extractPathFromSection = %q, want %q", path, "main.go")
	}
}

func TestExtractPathFromSection_NoPath(t *testing.T) {
	section := "diff --git a/main.go b/main.go\nsome other content\n"
	path := extractPathFromSection(section)
	if path != "" {
		t.Errorf("extractPathFromSection = %q, want empty", path)
	}
}

func TestFilterFileList(t *testing.T) {
	files := []string{"main.go", "vendor/lib.go", "pkg/util.go", "dist/bundle.js"}
	result := filterFileList(files, []string{"vendor/**", "**/dist/**"})
	if len(result) != 2 {
		t.Fatalf("filterFileList got %d files, want 2", len(result))
	}
	if result[0] != "main.go" {
		t.Errorf("result[0] = %q, want %q", result[0], "main.go")
	}
	if result[1] != "pkg/util.go" {
		t.Errorf("result[1] = %q, want %q", result[1], "pkg/util.go")
	}
}

func TestFilterFileList_Empty(t *testing.T) {
	result := filterFileList(nil, []string{"vendor/**"})
	if len(result) != 0 {
		t.Errorf("filterFileList nil input got %d, want 0", len(result))
	}
}

func TestBuildResult_ExcludeBeforeTruncate(t *testing.T) {
	smallDiff := "diff --git a/main.go b/main.go\n--- a/main.go\n+++ b/main.go\n@@ -1,3 +1,4 @@\n+line\n"
	largeDiff := "diff --git a/vendor/big.go b/vendor/big.go\n--- a/vendor/big.go\n+++ b/vendor/big.go\n@@ -1,3 +1,4 @@\n+" + strings.Repeat("x", 500) + "\n"
	diff := largeDiff + smallDiff

	opts := DiffOptions{
		MaxDiffBytes: 100,
		Exclude:      []string{"vendor/**"},
	}
	result, err := buildResult(diff, "staged", "", opts)
	if err != nil {
		t.Fatalf("buildResult error: %v", err)
	}

	if strings.Contains(result.Diff, "truncated") {
		t.Error("diff should not be truncated after excluding vendor/")
	}
	if !strings.Contains(result.Diff, "main.go") {
		t.Error("diff should still contain main.go")
	}
}

func TestBuildResult_Truncation(t *testing.T) {
	diff := "diff --git a/main.go b/main.go\n--- a/main.go\n+++ b/main.go\n@@ -1,3 +1,4 @@\n+" + strings.Repeat("x", 200) + "\n"
	result, err := buildResult(diff, "staged", "", DiffOptions{MaxDiffBytes: 50})
	if err != nil {
		t.Fatalf("buildResult error: %v", err)
	}
	if !strings.Contains(result.Diff, "truncated") {
		t.Error("large diff should be truncated")
	}
}

func TestBuildResult_MetadataAndMode(t *testing.T) {
	diff := "diff --git a/main.go b/main.go\n--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n+ok\n"
	result, err := buildResult(diff, "range", "abc..def", DiffOptions{})
	if err != nil {
		t.Fatalf("buildResult error: %v", err)
	}
	if result.Mode != "range" {
		t.Errorf("Mode = %q, want %q", result.Mode, "range")
	}
	if result.Range != "abc..def" {
		t.Errorf("Range = %q, want %q", result.Range, "abc..def")
	}
	if len(result.Files) != 1 || result.Files[0] != "main.go" {
		t.Errorf("Files = %v, want [main.go]", result.Files)
	}
}

// setupTestRepo creates a temp git repo with a committed file and chdirs
// into it for the duration of the test.
func setupTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) string {
		t.Helper()
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test",
			"GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test",
			"GIT_COMMITTER_EMAIL=test@test.com",
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("command %v failed: %v\n%s", args, err, out)
		}
		return strings.TrimSpace(string(out))
	}

	run("git", "init")
	run("git", "checkout", "-b", "main")

	os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644)
	run("git", "add", "-A")
	run("git", "commit", "-m", "init")

	origDir, _ := os.Getwd()
	os.Chdir(dir)
	t.Cleanup(func() { os.Chdir(origDir) })

	return dir
}

func TestGetRepoMeta(t *testing.T) {
	setupTestRepo(t)

	meta, err := GetRepoMeta()
	if err != nil {
		t.Fatalf("GetRepoMeta error: %v", err)
	}
	if meta.Root == "" {
		t.Error("Root should be set")
	}
	if len(meta.Head) != 40 {
		t.Errorf("Head = %q, want 40-char SHA", meta.Head)
	}
	if meta.Branch != "main" {
		t.Errorf("Branch = %q, want main", meta.Branch)
	}
}

func TestStaged(t *testing.T) {
	dir := setupTestRepo(t)

	os.WriteFile(filepath.Join(dir, "main.go"),
		[]byte("package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(\"ok\") }\n"), 0o644)
	cmd := exec.Command("git", "add", "main.go")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git add failed: %v\n%s", err, out)
	}

	result, err := Staged(DiffOptions{})
	if err != nil {
		t.Fatalf("Staged error: %v", err)
	}
	if result.Mode != "staged" {
		t.Errorf("Mode = %q, want staged", result.Mode)
	}
	if !strings.Contains(result.Diff, "+import \"fmt\"") {
		t.Errorf("diff should contain the staged change, got:\n%s", result.Diff)
	}
	if len(result.Files) != 1 || result.Files[0] != "main.go" {
		t.Errorf("Files = %v, want [main.go]", result.Files)
	}
	if result.Repo.Branch != "main" {
		t.Errorf("Repo.Branch = %q, want main", result.Repo.Branch)
	}
}

func TestStaged_Clean(t *testing.T) {
	setupTestRepo(t)

	result, err := Staged(DiffOptions{})
	if err != nil {
		t.Fatalf("Staged error: %v", err)
	}
	if strings.TrimSpace(result.Diff) != "" {
		t.Errorf("clean index should yield an empty diff, got:\n%s", result.Diff)
	}
	if len(result.Files) != 0 {
		t.Errorf("Files = %v, want none", result.Files)
	}
}

func TestRange(t *testing.T) {
	dir := setupTestRepo(t)

	run := func(args ...string) string {
		t.Helper()
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test",
			"GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test",
			"GIT_COMMITTER_EMAIL=test@test.com",
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("command %v failed: %v\n%s", args, err, out)
		}
		return strings.TrimSpace(string(out))
	}

	initSHA := run("git", "rev-parse", "HEAD")

	os.WriteFile(filepath.Join(dir, "util.go"), []byte("package main\n\nfunc helper() {}\n"), 0o644)
	run("git", "add", "util.go")
	run("git", "commit", "-m", "add util")

	result, err := Range(initSHA+"..HEAD", false, DiffOptions{})
	if err != nil {
		t.Fatalf("Range error: %v", err)
	}
	if result.Mode != "range" {
		t.Errorf("Mode = %q, want range", result.Mode)
	}
	if result.Range != initSHA+"..HEAD" {
		t.Errorf("Range = %q", result.Range)
	}
	if !strings.Contains(result.Diff, "+func helper() {}") {
		t.Errorf("diff should contain the committed change, got:\n%s", result.Diff)
	}

	// Merge-base widening is a no-op on linear history.
	viaBase, err := Range(initSHA+"..HEAD", true, DiffOptions{})
	if err != nil {
		t.Fatalf("Range with mergeBase error: %v", err)
	}
	if !strings.Contains(viaBase.Diff, "+func helper() {}") {
		t.Error("merge-base range should still contain the change")
	}
}
