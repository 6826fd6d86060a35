// Package config loads and merges refract configuration from multiple
// sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (REFRACT_BACKEND, REFRACT_MODEL, REFRACT_FAIL_ON, etc.)
//  3. Config file ($XDG_CONFIG_HOME/refract/config.json)
//  4. Built-in defaults
//
// Credentials never live in the config file. Tokens and key material are
// read from the environment only (REFRACT_API_KEY, REFRACT_SSH_KEY,
// GITHUB_TOKEN).
//
// Use [Load] to obtain a merged [Config], [Save] to write the config file,
// and [SetField] to update a single key.
package config
