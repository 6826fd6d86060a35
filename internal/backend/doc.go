// Package backend implements the hunk review capability for each supported
// model backend.
//
// Three adapters form a closed set: remote-shell runs a review CLI on
// another machine over ssh, managed-model POSTs to a model invocation
// endpoint, and hosted-chat speaks the OpenAI-compatible chat completions
// dialect. Each accepts one hunk plus optional guidelines and returns the
// model's raw text reply; parsing that reply into findings happens in the
// review package.
//
// Failures are classified into the closed [ErrorKind] set so callers branch
// on the failure class instead of matching strings. The HTTP adapters share
// a capped exponential backoff for rate limits and server errors; auth and
// request-shape failures never retry. HTTP clients and the subprocess runner
// are struct fields so tests swap in local fakes without touching the
// network.
//
// Use [New] to obtain a [Backend] by identifier, and [NewFailover] to chain
// adapters when an explicit fallback order is wanted.
package backend
