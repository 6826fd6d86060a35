package backend

import (
	"time"

	"go.uber.org/zap"

	"github.com/dshills/refract/internal/config"
)

// FromConfig builds the configured backend, wrapped in a [Failover] chain
// when fallbacks are configured. Credentials never come from cfg; adapters
// read them from the environment at call time.
func FromConfig(cfg config.Config, logger *zap.Logger) (Backend, error) {
	primary, err := fromConfigOne(cfg.Backend, cfg, logger)
	if err != nil {
		return nil, err
	}
	if len(cfg.Fallbacks) == 0 {
		return primary, nil
	}
	fallbacks := make([]Backend, 0, len(cfg.Fallbacks))
	for _, name := range cfg.Fallbacks {
		b, err := fromConfigOne(name, cfg, logger)
		if err != nil {
			return nil, err
		}
		fallbacks = append(fallbacks, b)
	}
	return NewFailover(logger, primary, fallbacks...), nil
}

func fromConfigOne(kind string, cfg config.Config, logger *zap.Logger) (Backend, error) {
	return New(kind, Options{
		Model:           cfg.ModelFor(kind),
		MaxTokens:       cfg.MaxTokens,
		Temperature:     cfg.Temperature,
		Timeout:         time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:          logger,
		Host:            cfg.RemoteShell.Host,
		Port:            cfg.RemoteShell.Port,
		User:            cfg.RemoteShell.User,
		IdentityFile:    cfg.RemoteShell.IdentityFile,
		RemoteCommand:   cfg.RemoteShell.Command,
		InsecureHostKey: cfg.RemoteShell.InsecureHostKey,
		Endpoint:        cfg.EndpointFor(kind),
	})
}
