// Package cli wires together the Cobra command tree for the margin binary.
//
// Commands resolve the project root, load configuration, and call the thread
// lifecycle API. Errors are mapped to stable exit codes so scripts and agents
// can tell a usage mistake from a lost race or a corrupt sidecar.
package cli
