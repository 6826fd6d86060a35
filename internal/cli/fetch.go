package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/refract/internal/config"
	"github.com/dshills/refract/internal/github"
)

var (
	flagFetchOut  string
	flagFetchDiff bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <owner/repo#N | pull request URL | number>",
	Short: "Fetch a pull request diff bundle",
	Long: "Fetch a pull request's metadata and per-file patches into a JSON bundle\n" +
		"that `refract review bundle` can replay offline. With --diff, fetch the\n" +
		"raw unified diff instead.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}

		ref, err := resolvePRRef(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitUsageError
			return nil
		}

		ctx := context.Background()

		client, err := github.NewClient(ctx, cfg.GitHub.APIBase, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitAuthError
			return nil
		}

		fmt.Fprintf(os.Stderr, "Fetching %s...\n", ref)

		if flagFetchDiff {
			diffText, err := client.GetPRDiff(ctx, ref)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				exitCode = ExitRuntimeError
				return nil
			}
			if flagFetchOut == "" {
				fmt.Fprint(os.Stdout, diffText)
				return nil
			}
			if err := os.WriteFile(flagFetchOut, []byte(diffText), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				exitCode = ExitRuntimeError
				return nil
			}
			fmt.Fprintf(os.Stderr, "Saved diff to %s\n", flagFetchOut)
			return nil
		}

		bundle, err := client.FetchBundle(ctx, ref)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		if flagFetchOut == "" {
			data, err := json.MarshalIndent(bundle, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				exitCode = ExitRuntimeError
				return nil
			}
			fmt.Fprintln(os.Stdout, string(data))
			return nil
		}

		if err := bundle.Save(flagFetchOut); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		fmt.Fprintf(os.Stderr, "Saved %d files to %s\n", len(bundle.Files), flagFetchOut)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&flagFetchOut, "out", "", "Output file path (default: stdout)")
	fetchCmd.Flags().BoolVar(&flagFetchDiff, "diff", false, "Fetch the raw unified diff instead of a bundle")
}
