package backend

import (
	"errors"
	"strings"
	"testing"

	"github.com/dshills/refract/internal/hunk"
)

func testHunk() hunk.Hunk {
	return hunk.Hunk{
		FilePath:   "internal/auth/login.go",
		HunkHeader: "@@ -10,4 +10,6 @@",
		StartLine:  10,
		EndLine:    15,
		PatchText:  "@@ -10,4 +10,6 @@\n func Login() error {\n+\tif password == \"\" {\n+\t\treturn errInvalid\n+\t}\n \treturn nil\n }",
		Language:   "Go",
	}
}

func TestNew_KnownBackends(t *testing.T) {
	for _, kind := range []string{NameRemoteShell, NameManagedModel, NameHostedChat} {
		b, err := New(kind, Options{})
		if err != nil {
			t.Fatalf("New(%q) error: %v", kind, err)
		}
		if b.Name() != kind {
			t.Errorf("Name() = %q, want %q", b.Name(), kind)
		}
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New("quantum", Options{})
	if err == nil {
		t.Fatal("Expected error for unknown backend")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ConfigError, got %T", err)
	}
	if ce.Name != "quantum" {
		t.Errorf("ConfigError.Name = %q, want %q", ce.Name, "quantum")
	}
	// The message should steer toward the valid identifiers.
	if !strings.Contains(err.Error(), NameHostedChat) {
		t.Errorf("Error %q should list valid backends", err.Error())
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", o.MaxTokens, defaultMaxTokens)
	}
	if o.Temperature != defaultTemperature {
		t.Errorf("Temperature = %v, want %v", o.Temperature, defaultTemperature)
	}
	if o.Timeout != defaultTimeout {
		t.Errorf("Timeout = %v, want %v", o.Timeout, defaultTimeout)
	}
	if o.Logger == nil {
		t.Error("Logger should default to a nop logger, not nil")
	}
}

func TestOptions_WithDefaultsKeepsExplicit(t *testing.T) {
	o := Options{MaxTokens: 512, Temperature: 0.7}.withDefaults()
	if o.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", o.MaxTokens)
	}
	if o.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", o.Temperature)
	}
}
