// Package reconcile relocates anchors after their source file changed.
//
// Each anchor goes through up to four phases and stops at the first success:
//
//  1. exact: the stored region hash is found. Several hits are told apart by
//     their context lines and then by distance from the last known position.
//  2. context: the stored before and after context lines are found near the
//     last known region, and the region between them is fuzzy matched.
//  3. fuzzy: a bounded window around the last known position is fuzzy
//     matched.
//  4. orphan: nothing matched well enough. The anchor keeps its last known
//     lines and snippet.
//
// Exact placements are anchored unless a positional tie-break was needed.
// Fuzzy placements are always drifted. The engine is deterministic: the same
// record and the same source always produce the same placements.
package reconcile
