// Package github fetches pull requests and posts review results through the
// GitHub REST API.
//
// [ParsePR] accepts "owner/repo#N" shorthand or a full PR URL, including
// GitHub Enterprise hosts. [Client.FetchBundle] turns a pull request into a
// reviewable [hunk.Bundle]; [Client.PostReview] publishes findings as a PR
// review, with inline comments for findings that land inside the diff and a
// summary body for the rest.
//
// Authentication prefers a personal token in GITHUB_TOKEN. When that is
// unset, GitHub App credentials (GITHUB_APP_ID, GITHUB_APP_INSTALLATION_ID,
// and GITHUB_APP_KEY or GITHUB_APP_KEY_PATH) are used to mint a short-lived
// installation token at client construction.
package github
