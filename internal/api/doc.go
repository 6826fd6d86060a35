// Package api serves the review pipeline over HTTP for `refract serve`.
//
// Three endpoints: POST /v1/review runs the full fetch-review-report
// pipeline for a pull request and returns the report JSON, POST /v1/score
// recomputes aggregate stats and the policy score for a posted finding
// list, and GET /healthz reports liveness with run counters. Every response
// carries an X-Request-ID header and every request is logged with it.
//
// [Server.Run] serves until its context is cancelled, then drains in-flight
// requests before returning, so the CLI can tie the server lifetime to
// SIGINT and SIGTERM.
package api
