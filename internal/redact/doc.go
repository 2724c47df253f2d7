// Package redact masks secrets in text that margin prints.
//
// Sidecars hold verbatim snippets of the code a thread is anchored to, and
// review comments often quote code. Before either is shown, likely secrets
// (API keys, tokens, private key headers, JWTs, password assignments) are
// replaced with [REDACTED]. Snippets of files whose path matches a configured
// glob are hidden entirely. Stored sidecars are never modified.
package redact
