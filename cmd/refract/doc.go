// Refract is a CLI and HTTP service for reviewing pull requests with LLM
// backends.
//
// It fetches a pull request (or reads a local diff), splits the change into
// hunks, reviews each hunk with a configured backend, and aggregates the
// findings into a scored report with deterministic exit codes suitable for CI
// gating and git hooks.
//
// Usage:
//
//	refract review pr dshills/refract#42   # review a GitHub pull request
//	refract review staged                  # review staged changes
//	refract review range origin/main..HEAD # review a revision range
//	refract review bundle pr42.json        # replay a saved bundle
//	refract fetch dshills/refract#42 --out pr42.json
//	refract score report.json              # rescore a saved report
//	refract serve --addr :8080             # run the review HTTP API
//
// See https://github.com/dshills/refract for full documentation.
package main
