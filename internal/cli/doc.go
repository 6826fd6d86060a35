// Package cli wires together the Cobra command tree for the refract binary.
//
// It defines the root command and all subcommands (review, fetch, score,
// backends, config, cache, hook, serve, version), binds flags, reads
// configuration, invokes the review pipeline, and returns deterministic exit
// codes for CI gating.
package cli
