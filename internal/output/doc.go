// Package output renders threads, reconcile reports and store summaries.
//
// Three formats are supported:
//   - text     human-readable terminal output (default)
//   - json     structured output for scripts and agents
//   - markdown suitable for pasting into a pull request or issue
//
// Use [GetWriter] to obtain a [Writer] for a format string.
package output
