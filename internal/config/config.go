package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Config represents the refract configuration. Credentials are deliberately
// absent: tokens and key material come only from the environment
// (REFRACT_API_KEY, REFRACT_SSH_KEY, GITHUB_TOKEN).
type Config struct {
	Backend      string            `json:"backend"`
	Fallbacks    []string          `json:"fallbacks,omitempty"`
	Model        string            `json:"model,omitempty"`
	Format       string            `json:"format"`
	FailOn       string            `json:"failOn"`
	Concurrency  int               `json:"concurrency"`
	MaxTokens    int               `json:"maxTokens"`
	Temperature  float64           `json:"temperature"`
	TimeoutSec   int               `json:"timeoutSec"`
	Guidelines   string            `json:"guidelines,omitempty"`
	Include      []string          `json:"include"`
	Exclude      []string          `json:"exclude"`
	MaxDiffBytes int               `json:"maxDiffBytes"`
	RemoteShell  RemoteShellConfig `json:"remoteShell"`
	ManagedModel EndpointConfig    `json:"managedModel"`
	HostedChat   EndpointConfig    `json:"hostedChat"`
	Cache        CacheConfig       `json:"cache"`
	Privacy      PrivacyConfig     `json:"privacy"`
	GitHub       GitHubConfig      `json:"github"`
}

// RemoteShellConfig holds the ssh transport settings for the remote-shell
// backend.
type RemoteShellConfig struct {
	Host            string `json:"host,omitempty"`
	Port            int    `json:"port"`
	User            string `json:"user,omitempty"`
	IdentityFile    string `json:"identityFile,omitempty"`
	Command         string `json:"command"`
	InsecureHostKey bool   `json:"insecureHostKey"`
}

// EndpointConfig holds the per-backend endpoint and model for the HTTP
// backends. An empty model falls back to the top-level default.
type EndpointConfig struct {
	Endpoint string `json:"endpoint,omitempty"`
	Model    string `json:"model,omitempty"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled    bool   `json:"enabled"`
	Dir        string `json:"dir,omitempty"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `json:"redactSecrets"`
	RedactPaths   []string `json:"redactPaths,omitempty"`
}

// GitHubConfig points at the GitHub API, overridable for GitHub Enterprise.
type GitHubConfig struct {
	APIBase string `json:"apiBase,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Backend:      "remote-shell",
		Format:       "text",
		FailOn:       "none",
		Concurrency:  4,
		MaxTokens:    2048,
		Temperature:  0.1,
		TimeoutSec:   90,
		Include:      []string{"**/*"},
		Exclude:      []string{"vendor/**", "**/*.gen.go", "**/dist/**"},
		MaxDiffBytes: 500000,
		RemoteShell: RemoteShellConfig{
			Port:    22,
			Command: "q chat",
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
	}
}

// ModelFor resolves the model for a backend: the per-backend section wins
// over the top-level default, which may itself be empty so the adapter's own
// default applies.
func (c Config) ModelFor(backend string) string {
	switch backend {
	case "managed-model":
		if c.ManagedModel.Model != "" {
			return c.ManagedModel.Model
		}
	case "hosted-chat":
		if c.HostedChat.Model != "" {
			return c.HostedChat.Model
		}
	}
	return c.Model
}

// EndpointFor resolves the invocation endpoint for a backend.
func (c Config) EndpointFor(backend string) string {
	switch backend {
	case "managed-model":
		return c.ManagedModel.Endpoint
	case "hosted-chat":
		return c.HostedChat.Endpoint
	}
	return ""
}

// ConfigDir returns the platform-appropriate config directory for refract.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "refract"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "refract"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "refract"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "refract"), nil
	default:
		return filepath.Join(home, ".config", "refract"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile loads config from the config file. Returns zero Config and nil
// error if the file doesn't exist.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <-
// overrides. The overrides map comes from CLI flags (only set values should
// appear).
func Load(overrides map[string]string) (Config, error) {
	cfg := Default()

	fileCfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	mergeFile(&cfg, fileCfg)
	mergeEnv(&cfg)
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func mergeFile(dst *Config, src Config) {
	if src.Backend != "" {
		dst.Backend = src.Backend
	}
	if len(src.Fallbacks) > 0 {
		dst.Fallbacks = src.Fallbacks
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.FailOn != "" {
		dst.FailOn = src.FailOn
	}
	if src.Concurrency > 0 {
		dst.Concurrency = src.Concurrency
	}
	if src.MaxTokens > 0 {
		dst.MaxTokens = src.MaxTokens
	}
	if src.Temperature > 0 {
		dst.Temperature = src.Temperature
	}
	if src.TimeoutSec > 0 {
		dst.TimeoutSec = src.TimeoutSec
	}
	if src.Guidelines != "" {
		dst.Guidelines = src.Guidelines
	}
	if len(src.Include) > 0 {
		dst.Include = src.Include
	}
	if len(src.Exclude) > 0 {
		dst.Exclude = src.Exclude
	}
	if src.MaxDiffBytes > 0 {
		dst.MaxDiffBytes = src.MaxDiffBytes
	}
	if src.RemoteShell.Host != "" {
		dst.RemoteShell.Host = src.RemoteShell.Host
	}
	if src.RemoteShell.Port > 0 {
		dst.RemoteShell.Port = src.RemoteShell.Port
	}
	if src.RemoteShell.User != "" {
		dst.RemoteShell.User = src.RemoteShell.User
	}
	if src.RemoteShell.IdentityFile != "" {
		dst.RemoteShell.IdentityFile = src.RemoteShell.IdentityFile
	}
	if src.RemoteShell.Command != "" {
		dst.RemoteShell.Command = src.RemoteShell.Command
	}
	// JSON cannot distinguish unset bools from false, so true always wins.
	dst.RemoteShell.InsecureHostKey = src.RemoteShell.InsecureHostKey || dst.RemoteShell.InsecureHostKey
	if src.ManagedModel.Endpoint != "" {
		dst.ManagedModel.Endpoint = src.ManagedModel.Endpoint
	}
	if src.ManagedModel.Model != "" {
		dst.ManagedModel.Model = src.ManagedModel.Model
	}
	if src.HostedChat.Endpoint != "" {
		dst.HostedChat.Endpoint = src.HostedChat.Endpoint
	}
	if src.HostedChat.Model != "" {
		dst.HostedChat.Model = src.HostedChat.Model
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}
	if src.Cache.TTLSeconds > 0 {
		dst.Cache.TTLSeconds = src.Cache.TTLSeconds
	}
	dst.Cache.Enabled = src.Cache.Enabled || dst.Cache.Enabled
	if len(src.Privacy.RedactPaths) > 0 {
		dst.Privacy.RedactPaths = src.Privacy.RedactPaths
	}
	if src.GitHub.APIBase != "" {
		dst.GitHub.APIBase = src.GitHub.APIBase
	}
}

func mergeEnv(cfg *Config) {
	if v := os.Getenv("REFRACT_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("REFRACT_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("REFRACT_FAIL_ON"); v != "" {
		cfg.FailOn = v
	}
	if v := os.Getenv("REFRACT_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("REFRACT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency = n
		}
	}
	if v := os.Getenv("REFRACT_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeoutSec = n
		}
	}
	if v := os.Getenv("REFRACT_SSH_HOST"); v != "" {
		cfg.RemoteShell.Host = v
	}
	if v := os.Getenv("REFRACT_SSH_USER"); v != "" {
		cfg.RemoteShell.User = v
	}
	if v := os.Getenv("REFRACT_SSH_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RemoteShell.Port = n
		}
	}
	if v := os.Getenv("REFRACT_ENDPOINT"); v != "" {
		cfg.ManagedModel.Endpoint = v
		cfg.HostedChat.Endpoint = v
	}
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	if overrides == nil {
		return nil
	}
	for key, value := range overrides {
		if value == "" {
			continue
		}
		if err := SetField(cfg, key, value); err != nil {
			return err
		}
	}
	return nil
}

// SetField sets a single config field by key name. Returns an error if the
// key is unknown, so `refract config set` can reject typos.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "backend":
		cfg.Backend = value
	case "model":
		cfg.Model = value
	case "format":
		cfg.Format = value
	case "failOn":
		cfg.FailOn = value
	case "concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("concurrency must be an integer: %w", err)
		}
		cfg.Concurrency = n
	case "maxTokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxTokens must be an integer: %w", err)
		}
		cfg.MaxTokens = n
	case "temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("temperature must be a number: %w", err)
		}
		cfg.Temperature = f
	case "timeoutSec":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("timeoutSec must be an integer: %w", err)
		}
		cfg.TimeoutSec = n
	case "guidelines":
		cfg.Guidelines = value
	case "maxDiffBytes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxDiffBytes must be an integer: %w", err)
		}
		cfg.MaxDiffBytes = n
	case "remoteShell.host":
		cfg.RemoteShell.Host = value
	case "remoteShell.user":
		cfg.RemoteShell.User = value
	case "remoteShell.port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("remoteShell.port must be an integer: %w", err)
		}
		cfg.RemoteShell.Port = n
	case "remoteShell.command":
		cfg.RemoteShell.Command = value
	case "managedModel.endpoint":
		cfg.ManagedModel.Endpoint = value
	case "managedModel.model":
		cfg.ManagedModel.Model = value
	case "hostedChat.endpoint":
		cfg.HostedChat.Endpoint = value
	case "hostedChat.model":
		cfg.HostedChat.Model = value
	case "github.apiBase":
		cfg.GitHub.APIBase = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
