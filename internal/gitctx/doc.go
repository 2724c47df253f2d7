// Package gitctx answers the few questions margin asks of git: where the
// working tree starts, and which files a range of commits renamed.
//
// It shells out to the git binary; nothing here is required when margin runs
// outside a repository.
package gitctx
