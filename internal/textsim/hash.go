package textsim

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Hash returns the SHA-256 digest of raw bytes.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("sha256:%x", h)
}

// HashText hashes the canonical form of s.
func HashText(s string) string {
	return Hash([]byte(Canonical(s)))
}

// HashLines hashes lines joined with "\n".
func HashLines(lines []string) string {
	return HashText(strings.Join(lines, "\n"))
}

// Canonical converts line endings to LF and applies NFC. It does not touch
// whitespace or case; exact hashes stay exact.
func Canonical(s string) string {
	if strings.Contains(s, "\r") {
		s = strings.ReplaceAll(s, "\r\n", "\n")
		s = strings.ReplaceAll(s, "\r", "\n")
	}
	return norm.NFC.String(s)
}

// SplitLines splits content into lines. A trailing newline does not produce
// an extra empty line, and empty content has no lines.
func SplitLines(content string) []string {
	content = Canonical(content)
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}
