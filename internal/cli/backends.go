package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/refract/internal/backend"
	"github.com/dshills/refract/internal/config"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List review backends and their configured status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}

		active := cfg.Backend
		if len(cfg.Fallbacks) > 0 {
			fmt.Fprintf(os.Stdout, "Active backend: %s (fallbacks: %s)\n\n", active, strings.Join(cfg.Fallbacks, ", "))
		} else {
			fmt.Fprintf(os.Stdout, "Active backend: %s\n\n", active)
		}

		for _, name := range []string{backend.NameRemoteShell, backend.NameManagedModel, backend.NameHostedChat} {
			marker := " "
			if name == active {
				marker = "*"
			}
			fmt.Fprintf(os.Stdout, "%s %s\n", marker, name)
			fmt.Fprintf(os.Stdout, "    model: %s\n", orDefault(cfg.ModelFor(name), "(adapter default)"))
			switch name {
			case backend.NameRemoteShell:
				host := cfg.RemoteShell.Host
				if host == "" {
					host = "(not set)"
				} else if cfg.RemoteShell.Port > 0 && cfg.RemoteShell.Port != 22 {
					host = fmt.Sprintf("%s:%d", host, cfg.RemoteShell.Port)
				}
				fmt.Fprintf(os.Stdout, "    host: %s\n", host)
				fmt.Fprintf(os.Stdout, "    command: %s\n", orDefault(cfg.RemoteShell.Command, "q chat"))
				fmt.Fprintf(os.Stdout, "    ssh key: %s\n", sshKeyStatus(cfg))
			case backend.NameManagedModel, backend.NameHostedChat:
				fmt.Fprintf(os.Stdout, "    endpoint: %s\n", orDefault(cfg.EndpointFor(name), "(default)"))
				fmt.Fprintf(os.Stdout, "    api key: REFRACT_API_KEY %s\n", envStatus("REFRACT_API_KEY"))
			}
			fmt.Fprintln(os.Stdout)
		}

		fmt.Fprintf(os.Stdout, "GitHub token: GITHUB_TOKEN %s\n", envStatus("GITHUB_TOKEN"))
		return nil
	},
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func envStatus(name string) string {
	if os.Getenv(name) != "" {
		return "(set)"
	}
	return "(not set)"
}

func sshKeyStatus(cfg config.Config) string {
	if cfg.RemoteShell.IdentityFile != "" {
		return cfg.RemoteShell.IdentityFile
	}
	return "REFRACT_SSH_KEY " + envStatus("REFRACT_SSH_KEY")
}
