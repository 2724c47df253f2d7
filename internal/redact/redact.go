package redact

import (
	"path"
	"regexp"
	"strings"
)

// Placeholder replaces each detected secret.
const Placeholder = "[REDACTED]"

// DefaultPaths are the path globs whose snippets are hidden unless configured
// otherwise.
var DefaultPaths = []string{"**/.env", "**/.env.*", "**/*secret*"}

var secretPatterns = []*regexp.Regexp{
	// key or secret assignments with a long value
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+([A-Z]+\s+)?PRIVATE KEY-----`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	// connection strings with an inline password
	regexp.MustCompile(`[a-z][a-z0-9+.-]*://[^\s:/@]+:[^\s@]{3,}@[^\s]+`),
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Secrets replaces detected secrets in text with Placeholder. Line breaks are
// preserved.
func Secrets(text string) string {
	for _, pat := range secretPatterns {
		text = pat.ReplaceAllString(text, Placeholder)
	}
	return text
}

// MatchPath reports whether a slash-separated path matches any pattern. A
// leading "**/" matches at any depth.
func MatchPath(p string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, p); ok {
			return true
		}
		if rest, found := strings.CutPrefix(pattern, "**/"); found {
			if ok, _ := path.Match(rest, path.Base(p)); ok {
				return true
			}
			if ok, _ := path.Match(rest, p); ok {
				return true
			}
		}
	}
	return false
}

// Snippet returns the snippet of file safe to display: hidden entirely when
// the path matches hiddenPaths, otherwise with secrets masked.
func Snippet(file, snippet string, hiddenPaths []string) string {
	if MatchPath(file, hiddenPaths) {
		return Placeholder + " (snippet hidden by path policy)"
	}
	return Secrets(snippet)
}
