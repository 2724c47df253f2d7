// Package textsim provides the hashing and similarity primitives used to
// anchor comments to source text.
//
// Hashes are SHA-256 digests formatted as "sha256:<hex>". Region and context
// hashes are computed over canonical text (LF line endings, NFC), so a file
// that only switches between CRLF and LF keeps its anchors.
//
// Similarity combines two independent signals, each in [0, 1]:
//   - a normalized insert/delete edit similarity over runes, and
//   - a Dice overlap of word-token shingles (single tokens and adjacent
//     token bigrams).
//
// [Combined] averages them. Inputs are Unicode-normalized (NFKC), case folded
// and whitespace-collapsed before comparison. Everything here is pure and
// deterministic; memory use is linear in the input size.
package textsim
