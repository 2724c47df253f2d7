// Package model defines threads, comments, anchors and the sidecar record that
// persists them.
//
// A [Record] holds every [Thread] anchored to one source file. Each thread
// carries an append-only list of [Comment] values, a resolution history and an
// [Anchor]. The anchor keeps redundant signals (content hash, context hashes,
// verbatim snippet) that are fixed when the thread is created; only its
// placement (line range, health, drift distance) changes, and only as a unit
// through [Anchor.Place].
//
// Status, Health and AuthorKind are closed string enums with Valid methods.
// [Marshal] is deterministic: threads are ordered by id, fields are written in
// declaration order with two-space indentation and HTML escaping disabled.
package model
