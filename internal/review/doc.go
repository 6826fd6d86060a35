// Package review contains the core types and pipeline for LLM-based pull
// request review.
//
// It defines the Finding, ReviewStats, and Report types, builds per-hunk
// prompts, and normalizes raw backend output into findings with per-field
// defaults. Every reviewed hunk yields at least one finding: unparseable or
// empty responses and failed backend calls degrade to system diagnostics
// (category system, severity info, confidence at most 0.1) instead of
// errors.
//
// The [Orchestrator] fans hunks out to one backend with bounded concurrency.
// One hunk's failure never aborts the run or blocks its siblings, and
// cancelling the context returns the findings completed so far.
//
// After collection, [ApplyHeuristics] escalates findings whose messages
// match security vocabulary, guidelines packs (guidelines.go) can override
// severities per category, and [Aggregate] plus a [ScorePolicy] reduce the
// list to per-severity tallies and a single score.
package review
