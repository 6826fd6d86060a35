package backend

import (
	"errors"
	"testing"

	"github.com/dshills/refract/internal/config"
)

func TestFromConfig_Single(t *testing.T) {
	cfg := config.Default()
	b, err := FromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("FromConfig error: %v", err)
	}
	if b.Name() != NameRemoteShell {
		t.Errorf("Name() = %q, want %q", b.Name(), NameRemoteShell)
	}
}

func TestFromConfig_FailoverChain(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = NameRemoteShell
	cfg.Fallbacks = []string{NameHostedChat, NameManagedModel}

	b, err := FromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("FromConfig error: %v", err)
	}
	want := "remote-shell+hosted-chat+managed-model"
	if b.Name() != want {
		t.Errorf("Name() = %q, want %q", b.Name(), want)
	}
}

func TestFromConfig_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "mainframe"

	_, err := FromConfig(cfg, nil)
	if err == nil {
		t.Fatal("Expected error for unknown backend")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ConfigError, got %T", err)
	}
}

func TestFromConfig_UnknownFallback(t *testing.T) {
	cfg := config.Default()
	cfg.Fallbacks = []string{"mainframe"}

	if _, err := FromConfig(cfg, nil); err == nil {
		t.Fatal("Expected error for unknown fallback backend")
	}
}

func TestFromConfig_ModelResolution(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = NameHostedChat
	cfg.Model = "generic-model"
	cfg.HostedChat.Model = "gpt-4o"

	if got := cfg.ModelFor(NameHostedChat); got != "gpt-4o" {
		t.Errorf("ModelFor(hosted-chat) = %q, want the per-backend override", got)
	}
	if got := cfg.ModelFor(NameRemoteShell); got != "generic-model" {
		t.Errorf("ModelFor(remote-shell) = %q, want the top-level default", got)
	}
}
