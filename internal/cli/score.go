package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/refract/internal/review"
)

var scoreCmd = &cobra.Command{
	Use:   "score <report.json>",
	Short: "Recompute stats and score for a saved report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		var report review.Report
		if err := json.Unmarshal(data, &report); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing report: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		if report.Hash != "" && report.ComputeHash() != report.Hash {
			fmt.Fprintln(os.Stderr, "Warning: report hash mismatch; findings were modified after the run")
		}

		policy := review.DefaultPolicy()
		stats := review.Aggregate(report.Findings)
		score := policy.Score(stats)

		fmt.Fprintf(os.Stdout, "Report: %s (run %s)\n", args[0], report.RunID)
		if report.Backend != "" {
			line := report.Backend
			if report.Model != "" {
				line += " (" + report.Model + ")"
			}
			fmt.Fprintf(os.Stdout, "Backend: %s\n", line)
		}
		fmt.Fprintf(os.Stdout, "Findings: %d total (%d blocking, %d major, %d minor, %d nit)\n",
			stats.Total, stats.Blocking, stats.Major, stats.Minor, stats.Nit)
		fmt.Fprintf(os.Stdout, "Score: %.0f/100 (%s policy", score, policy.Name())
		if score != report.Score {
			fmt.Fprintf(os.Stdout, ", stored: %.0f", report.Score)
		}
		fmt.Fprintln(os.Stdout, ")")
		return nil
	},
}
