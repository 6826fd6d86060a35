package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/refract/internal/api"
	"github.com/dshills/refract/internal/config"
)

var flagServeAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review HTTP API",
	Long: `Run an HTTP server exposing the review pipeline.

Endpoints:
  POST /v1/review   Review a pull request and return the report
  POST /v1/score    Score a set of findings
  GET  /healthz     Health and uptime counters

The server shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			exitCode = ExitUsageError
			return nil
		}

		// Servers want request logs at info level even without --verbose.
		srvLogger := logger
		if !flagVerbose {
			zcfg := zap.NewProductionConfig()
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
			srvLogger, err = zcfg.Build()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error building logger: %v\n", err)
				exitCode = ExitRuntimeError
				return nil
			}
			defer srvLogger.Sync() //nolint:errcheck
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := api.NewServer(cfg, version, srvLogger)
		if err := srv.Run(ctx, flagServeAddr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&flagBackend, "backend", "", "Review backend (remote-shell, managed-model, hosted-chat)")
	serveCmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	serveCmd.Flags().StringVar(&flagGuidelines, "guidelines", "", "Guidelines file path (YAML, JSON, or plain text)")
	serveCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Concurrent backend calls")
}
