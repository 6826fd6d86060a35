package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/refract/internal/backend"
	"github.com/dshills/refract/internal/cache"
	"github.com/dshills/refract/internal/config"
	"github.com/dshills/refract/internal/github"
	"github.com/dshills/refract/internal/gitctx"
	"github.com/dshills/refract/internal/hunk"
	"github.com/dshills/refract/internal/output"
	"github.com/dshills/refract/internal/review"
)

// Shared review flags
var (
	flagPaths        string
	flagExclude      string
	flagContextLines int
	flagMaxDiffBytes int
	flagBackend      string
	flagModel        string
	flagFormat       string
	flagOut          string
	flagFailOn       string
	flagGuidelines   string
	flagConcurrency  int
	flagNoRedact     bool
	flagNoCache      bool
)

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagPaths, "paths", "", "Include file path globs (comma-separated)")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Exclude file path globs (comma-separated)")
	cmd.Flags().IntVar(&flagContextLines, "context-lines", 0, "Number of context lines in local diffs")
	cmd.Flags().IntVar(&flagMaxDiffBytes, "max-diff-bytes", 0, "Maximum local diff size in bytes")
	cmd.Flags().StringVar(&flagBackend, "backend", "", "Review backend (remote-shell, managed-model, hosted-chat)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, sarif)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "Fail on severity threshold (none, nit, minor, major, blocking)")
	cmd.Flags().StringVar(&flagGuidelines, "guidelines", "", "Guidelines file path (YAML, JSON, or plain text)")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Concurrent backend calls")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the response cache for this run")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagBackend != "" {
		m["backend"] = flagBackend
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagFailOn != "" {
		m["failOn"] = flagFailOn
	}
	if flagGuidelines != "" {
		m["guidelines"] = flagGuidelines
	}
	if flagConcurrency > 0 {
		m["concurrency"] = fmt.Sprintf("%d", flagConcurrency)
	}
	if flagMaxDiffBytes > 0 {
		m["maxDiffBytes"] = fmt.Sprintf("%d", flagMaxDiffBytes)
	}
	return m
}

// effectivePatterns merges include/exclude globs from config and flags. The
// --paths flag replaces the configured includes; --exclude appends.
func effectivePatterns(cfg config.Config) (include, exclude []string) {
	include = cfg.Include
	exclude = cfg.Exclude
	if flagPaths != "" {
		include = splitComma(flagPaths)
	}
	if flagExclude != "" {
		exclude = append(append([]string{}, exclude...), splitComma(flagExclude)...)
	}
	return include, exclude
}

func buildDiffOpts(cfg config.Config) gitctx.DiffOptions {
	include, exclude := effectivePatterns(cfg)
	return gitctx.DiffOptions{
		ContextLines: flagContextLines,
		MaxDiffBytes: cfg.MaxDiffBytes,
		Include:      include,
		Exclude:      exclude,
	}
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// bundleHunks extracts the reviewable hunks from a bundle and applies the
// include/exclude filters.
func bundleHunks(b *hunk.Bundle, cfg config.Config) ([]hunk.Hunk, error) {
	hunks, err := b.Hunks()
	if err != nil {
		return nil, fmt.Errorf("extracting hunks: %w", err)
	}
	include, exclude := effectivePatterns(cfg)
	return hunk.Filter(hunks, include, exclude), nil
}

// assembleReport runs the review pipeline over the hunks and fills everything
// except Inputs and Repo, which depend on where the hunks came from.
func assembleReport(ctx context.Context, cfg config.Config, hunks []hunk.Hunk, fetchMs int64) (*review.Report, error) {
	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
		fmt.Fprintln(os.Stderr, "WARNING: secret redaction is disabled")
	}
	if flagNoCache {
		cfg.Cache.Enabled = false
	}

	pack, err := review.LoadGuidelines(cfg.Guidelines)
	if err != nil {
		return nil, err
	}

	be, err := backend.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	orch := review.NewOrchestrator(be, logger)
	orch.Limit = cfg.Concurrency
	orch.Model = cfg.ModelFor(cfg.Backend)
	orch.Redact = cfg.Privacy.RedactSecrets
	orch.RedactPaths = cfg.Privacy.RedactPaths
	if c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds); err != nil {
		logger.Warn("cache unavailable for this run", zap.Error(err))
	} else {
		orch.Cache = c
	}
	orch.OnProgress = func(done, total int) {
		fmt.Fprintf(os.Stderr, "\r  %d/%d hunks", done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}

	fmt.Fprintf(os.Stderr, "Reviewing %d hunks with %s...\n", len(hunks), be.Name())
	start := time.Now()
	findings := orch.ReviewAll(ctx, hunks, pack.PromptSection())
	findings = review.ApplyHeuristics(findings)
	findings = review.ApplySeverityOverrides(findings, pack)
	reviewMs := time.Since(start).Milliseconds()

	report := review.BuildReport(version, findings, review.DefaultPolicy())
	report.Backend = be.Name()
	report.Model = cfg.ModelFor(cfg.Backend)
	report.Timing = review.Timing{
		FetchMs:  fetchMs,
		ReviewMs: reviewMs,
		TotalMs:  fetchMs + reviewMs,
	}
	return report, nil
}

// reportPipelineError prints err and sets the exit code: backend
// configuration mistakes are usage errors, everything else is runtime.
func reportPipelineError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ce *backend.ConfigError
	if errors.As(err, &ce) {
		exitCode = ExitUsageError
		return
	}
	exitCode = ExitRuntimeError
}

// finishReport writes the report in the configured format and applies the
// fail-on gate.
func finishReport(report *review.Report, cfg config.Config) {
	if err := output.WriteReport(report, cfg.Format, flagOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	if cfg.FailOn != "none" && cfg.FailOn != "" {
		for _, f := range report.Findings {
			if review.MeetsThreshold(f.Severity, cfg.FailOn) {
				exitCode = ExitFindings
				return
			}
		}
	}
}

func runLocalReview(diff gitctx.DiffResult, cfg config.Config) {
	if strings.TrimSpace(diff.Diff) == "" {
		fmt.Fprintln(os.Stdout, "No changes to review.")
		return
	}

	hunks, err := hunk.ExtractDiff([]byte(diff.Diff))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting hunks: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}
	if len(hunks) == 0 {
		fmt.Fprintln(os.Stdout, "No changes to review.")
		return
	}

	report, err := assembleReport(context.Background(), cfg, hunks, 0)
	if err != nil {
		reportPipelineError(err)
		return
	}
	report.Inputs = review.InputInfo{Mode: diff.Mode, Range: diff.Range}
	report.Repo = review.RepoInfo{
		Root:   diff.Repo.Root,
		Head:   diff.Repo.Head,
		Branch: diff.Repo.Branch,
	}

	finishReport(report, cfg)
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review code changes",
	Long:  "Review code changes with a model backend. Use subcommands to choose what to review.",
}

var flagPost bool

// resolvePRRef parses a PR reference, accepting a bare number when run inside
// a clone whose origin remote names the repository.
func resolvePRRef(arg string) (github.PRRef, error) {
	ref, err := github.ParsePR(arg)
	if err == nil {
		return ref, nil
	}
	if n, convErr := strconv.Atoi(arg); convErr == nil && n > 0 {
		owner, repo, detErr := github.DetectRepo()
		if detErr != nil {
			return github.PRRef{}, fmt.Errorf("resolving PR %d: %w", n, detErr)
		}
		return github.PRRef{Owner: owner, Repo: repo, Number: n}, nil
	}
	return github.PRRef{}, err
}

var reviewPRCmd = &cobra.Command{
	Use:   "pr <owner/repo#N | pull request URL | number>",
	Short: "Review a GitHub pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
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
		fetchStart := time.Now()
		bundle, err := client.FetchBundle(ctx, ref)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		fetchMs := time.Since(fetchStart).Milliseconds()

		hunks, err := bundleHunks(bundle, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		if len(hunks) == 0 {
			fmt.Fprintln(os.Stdout, "Nothing to review.")
			return nil
		}

		report, err := assembleReport(ctx, cfg, hunks, fetchMs)
		if err != nil {
			reportPipelineError(err)
			return nil
		}
		report.Inputs = review.InputInfo{Mode: "pr", PR: ref.String()}

		if flagPost {
			diffFiles := make(map[string]bool, len(bundle.Files))
			for _, f := range bundle.Files {
				diffFiles[f.Path] = true
			}
			reviewReq := github.BuildReviewRequest(report, diffFiles)
			fmt.Fprintf(os.Stderr, "Posting review (%d inline comments)...\n", len(reviewReq.Comments))
			if err := client.PostReview(ctx, ref, reviewReq); err != nil {
				fmt.Fprintf(os.Stderr, "Error posting review: %v\n", err)
				exitCode = ExitRuntimeError
				return nil
			}
			fmt.Fprintf(os.Stderr, "Review posted to %s.\n", ref)
		}

		finishReport(report, cfg)
		return nil
	},
}

var reviewStagedCmd = &cobra.Command{
	Use:   "staged",
	Short: "Review staged changes (index vs HEAD)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		diff, err := gitctx.Staged(buildDiffOpts(cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		runLocalReview(diff, cfg)
		return nil
	},
}

var flagMergeBase bool

var reviewRangeCmd = &cobra.Command{
	Use:   "range <revRange>",
	Short: "Review a revision range (e.g., origin/main..HEAD)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		diff, err := gitctx.Range(args[0], flagMergeBase, buildDiffOpts(cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		runLocalReview(diff, cfg)
		return nil
	},
}

var reviewBundleCmd = &cobra.Command{
	Use:   "bundle <file>",
	Short: "Review a diff bundle saved by fetch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}

		b, err := hunk.LoadBundle(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		hunks, err := bundleHunks(b, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		if len(hunks) == 0 {
			fmt.Fprintln(os.Stdout, "Nothing to review.")
			return nil
		}

		report, err := assembleReport(context.Background(), cfg, hunks, 0)
		if err != nil {
			reportPipelineError(err)
			return nil
		}
		report.Inputs = review.InputInfo{Mode: "bundle", PR: b.PR, Path: args[0]}

		finishReport(report, cfg)
		return nil
	},
}

func init() {
	reviewCmd.AddCommand(reviewPRCmd)
	reviewCmd.AddCommand(reviewStagedCmd)
	reviewCmd.AddCommand(reviewRangeCmd)
	reviewCmd.AddCommand(reviewBundleCmd)

	for _, cmd := range []*cobra.Command{
		reviewPRCmd,
		reviewStagedCmd,
		reviewRangeCmd,
		reviewBundleCmd,
	} {
		addReviewFlags(cmd)
	}

	// PR-specific flags
	reviewPRCmd.Flags().BoolVar(&flagPost, "post", false, "Post findings back to the pull request as a review")

	// Range-specific flags
	reviewRangeCmd.Flags().BoolVar(&flagMergeBase, "merge-base", true, "Use merge base for branch comparisons")
}
