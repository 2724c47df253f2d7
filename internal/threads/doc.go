// Package threads is the lifecycle API for review threads: adding, replying,
// resolving, dismissing, reopening, querying and relocating them.
//
// Every call that touches a sidecar first compares its stored source hash with
// the source file on disk and, when they differ, reconciles the anchors and
// persists the result before doing anything else. Mutations follow a
// read, reconcile, apply, save cycle that is retried when another writer
// saved the sidecar in between.
package threads
