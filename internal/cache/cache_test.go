package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// forgeEntry writes an entry file directly so tests can control CreatedAt
// without sleeping.
func forgeEntry(t *testing.T, c *Cache, key, response string, age time.Duration) {
	t.Helper()
	entry := Entry{
		Key:       HashKey(key),
		Response:  response,
		CreatedAt: time.Now().Add(-age),
		TTL:       c.ttlSeconds,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal entry: %v", err)
	}
	if err := os.WriteFile(c.entryPath(key), data, 0o644); err != nil {
		t.Fatalf("write entry: %v", err)
	}
}

func TestCache_PutGet(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 3600)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	key := BuildKey("hosted-chat", "gpt-4o", "diff --git a/main.go b/main.go")
	value := "- [major][correctness] nil map write in handler\n"

	if _, ok := c.Get(key); ok {
		t.Error("Get before Put should miss")
	}
	if err := c.Put(key, value); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get after Put should hit")
	}
	if got != value {
		t.Errorf("Get = %q, want %q", got, value)
	}

	// Only the key hash may appear on disk, never the key material.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entry count = %d, want 1", len(entries))
	}
	if want := HashKey(key) + ".json"; entries[0].Name() != want {
		t.Errorf("entry file = %q, want %q", entries[0].Name(), want)
	}
}

func TestCache_ExpiredEntryRemovedOnGet(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 3600)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	forgeEntry(t, c, "stale", "old response", 2*time.Hour)

	if _, ok := c.Get("stale"); ok {
		t.Error("Get should miss once the TTL has passed")
	}
	if _, err := os.Stat(c.entryPath("stale")); !os.IsNotExist(err) {
		t.Error("expired entry file should be removed by Get")
	}
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	forgeEntry(t, c, "ancient", "still good", 100*24*time.Hour)

	got, ok := c.Get("ancient")
	if !ok {
		t.Fatal("zero TTL should mean entries never expire")
	}
	if got != "still good" {
		t.Errorf("Get = %q, want %q", got, "still good")
	}
}

func TestCache_Disabled(t *testing.T) {
	c, err := New(false, "", 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if c.Enabled() {
		t.Error("Enabled() = true for a disabled cache")
	}
	if err := c.Put("key", "value"); err != nil {
		t.Errorf("Put on disabled cache: %v", err)
	}
	if _, ok := c.Get("key"); ok {
		t.Error("Get on disabled cache should always miss")
	}
	removed, err := c.Clear()
	if err != nil {
		t.Errorf("Clear on disabled cache: %v", err)
	}
	if removed != 0 {
		t.Errorf("Clear removed %d entries, want 0", removed)
	}
	stats, err := c.GetStats()
	if err != nil {
		t.Errorf("GetStats on disabled cache: %v", err)
	}
	if stats.Entries != 0 || stats.TotalBytes != 0 {
		t.Errorf("GetStats = %+v, want zero stats", stats)
	}
}

func TestCache_ClearCountsOnlyEntryFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 3600)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for _, key := range []string{"one", "two", "three"} {
		if err := c.Put(key, "response"); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}
	// A stray non-entry file must survive Clear.
	strayPath := filepath.Join(dir, "README.txt")
	if err := os.WriteFile(strayPath, []byte("not a cache entry"), 0o644); err != nil {
		t.Fatal(err)
	}

	removed, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if removed != 3 {
		t.Errorf("Clear removed %d entries, want 3", removed)
	}
	if _, err := os.Stat(strayPath); err != nil {
		t.Errorf("Clear should leave non-entry files alone: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			t.Errorf("entry %s survived Clear", e.Name())
		}
	}
}

func TestCache_ClearMissingDir(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 3600)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	removed, err := c.Clear()
	if err != nil {
		t.Errorf("Clear with missing dir: %v", err)
	}
	if removed != 0 {
		t.Errorf("Clear removed %d entries, want 0", removed)
	}
}

func TestCache_GetStats(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 3600)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("Entries = %d, want 0 for empty cache", stats.Entries)
	}
	if stats.Dir != dir {
		t.Errorf("Dir = %q, want %q", stats.Dir, dir)
	}

	forgeEntry(t, c, "fresh", "recent response", 0)
	forgeEntry(t, c, "stale", "old response", 2*time.Hour)

	stats, err = c.GetStats()
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("Entries = %d, want 2", stats.Entries)
	}
	if stats.Expired != 1 {
		t.Errorf("Expired = %d, want 1", stats.Expired)
	}
	if stats.TotalBytes <= 0 {
		t.Error("TotalBytes should be positive")
	}
}

func TestCache_CorruptEntryIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 3600)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := os.WriteFile(c.entryPath("bad"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("bad"); ok {
		t.Error("Get should miss on an unreadable entry")
	}
}

func TestCache_DefaultDirFromXDG(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", tmpDir)

	c, err := New(true, "", 3600)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	want := filepath.Join(tmpDir, "refract")
	if c.Dir() != want {
		t.Errorf("Dir() = %q, want %q", c.Dir(), want)
	}
	if info, err := os.Stat(want); err != nil || !info.IsDir() {
		t.Errorf("New should create the cache directory: %v", err)
	}
}

func TestHashKey(t *testing.T) {
	h := HashKey("review payload")
	if h != HashKey("review payload") {
		t.Error("HashKey should be deterministic")
	}
	if h == HashKey("other payload") {
		t.Error("different inputs should hash differently")
	}
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h))
	}
	for _, r := range h {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("hash contains non-hex rune %q", r)
		}
	}
}

func TestBuildKey(t *testing.T) {
	base := BuildKey("remote-shell", "default", "hunk body")
	if base != BuildKey("remote-shell", "default", "hunk body") {
		t.Error("identical inputs should produce identical keys")
	}

	variants := map[string]string{
		"backend": BuildKey("hosted-chat", "default", "hunk body"),
		"model":   BuildKey("remote-shell", "gpt-4o", "hunk body"),
		"content": BuildKey("remote-shell", "default", "other body"),
	}
	for part, key := range variants {
		if key == base {
			t.Errorf("changing the %s should change the key", part)
		}
	}
}
