package backend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/refract/internal/hunk"
	"github.com/dshills/refract/internal/review"
)

// Known backend identifiers accepted by [New].
const (
	NameRemoteShell  = "remote-shell"
	NameManagedModel = "managed-model"
	NameHostedChat   = "hosted-chat"
)

const (
	defaultMaxTokens   = 2048
	defaultTemperature = 0.1
	defaultTimeout     = 90 * time.Second
)

// Backend reviews one hunk at a time and returns the model's raw text reply.
// Parsing the reply into findings is the review package's job.
type Backend interface {
	ReviewHunk(ctx context.Context, h hunk.Hunk, guidelines string) (string, error)
	Name() string
}

// The orchestrator consumes backends through review.HunkReviewer; keep the
// two interfaces aligned.
var _ review.HunkReviewer = Backend(nil)

// Options carries adapter settings assembled by the config layer. Each
// adapter reads the fields it needs and ignores the rest. Credential fields
// left empty fall back to the environment; secrets never live in config
// files.
type Options struct {
	Model       string
	MaxTokens   int           // 0 means 2048
	Temperature float64       // 0 means 0.1
	Timeout     time.Duration // per ReviewHunk call, retries included; 0 means 90s
	Logger      *zap.Logger

	// Remote shell transport.
	Host            string
	Port            int // 0 means 22
	User            string
	IdentityFile    string // falls back to REFRACT_SSH_KEY
	RemoteCommand   string // review CLI on the remote host, default "q chat"
	InsecureHostKey bool   // disable strict host key checking entirely

	// HTTP transports. Endpoint is the invocation base URL; APIKey falls
	// back to REFRACT_API_KEY.
	Endpoint string
	APIKey   string
}

// withDefaults fills unset shared fields.
func (o Options) withDefaults() Options {
	if o.MaxTokens == 0 {
		o.MaxTokens = defaultMaxTokens
	}
	if o.Temperature == 0 {
		o.Temperature = defaultTemperature
	}
	if o.Timeout == 0 {
		o.Timeout = defaultTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// New creates a backend by identifier. Unknown identifiers are a
// [*ConfigError] and fatal at startup. Adapters themselves never fail to
// construct: a missing credential or binary surfaces per call as
// [KindDependencyMissing], so a degraded run still produces a report.
func New(kind string, opts Options) (Backend, error) {
	switch kind {
	case NameRemoteShell:
		return NewRemoteShell(opts), nil
	case NameManagedModel:
		return NewManagedModel(opts), nil
	case NameHostedChat:
		return NewHostedChat(opts), nil
	default:
		return nil, &ConfigError{
			Name:   kind,
			Reason: fmt.Sprintf("unknown backend (valid: %s, %s, %s)", NameRemoteShell, NameManagedModel, NameHostedChat),
		}
	}
}
