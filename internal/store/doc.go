// Package store persists sidecar records, one per source file, under a
// sidecar directory that mirrors the source tree:
//
//	<root>/<sidecar dir>/<source path>.json
//
// Every write goes to a temporary file in the target directory which is
// fsynced and renamed over the target, so readers observe either the old or
// the new record and never a partial one. A crash mid-write leaves at most a
// stray "*.tmp-*" file, which [Store.Walk] ignores.
//
// Access is serialized with an OS advisory lock on a sibling ".lock" file:
// shared for [Store.Load], exclusive for [Store.Save] and [Store.Move].
// Acquisition gives up after the configured timeout with a retryable
// [*LockTimeoutError]. Each lock is held only for the duration of one call.
//
// [Store.Save] is also optimistically checked against the record on disk and
// returns [*ConflictError] when another writer got there first. Callers
// re-read, re-apply and retry.
package store
