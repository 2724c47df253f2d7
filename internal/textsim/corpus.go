package textsim

import (
	"strings"
	"unicode/utf8"
)

// Corpus holds the normalized form and tokens of every line of one file, so
// that many line windows can be prepared without normalizing a line twice.
type Corpus struct {
	norm   []string
	tokens [][]string
}

// NewCorpus normalizes each line once.
func NewCorpus(lines []string) *Corpus {
	c := &Corpus{
		norm:   make([]string, len(lines)),
		tokens: make([][]string, len(lines)),
	}
	for i, l := range lines {
		n := Normalize(l)
		c.norm[i] = n
		c.tokens[i] = Tokens(n)
	}
	return c
}

// Len returns the number of lines.
func (c *Corpus) Len() int { return len(c.norm) }

// Window returns lines [start, end) prepared as Prepare would prepare them
// joined with newlines.
func (c *Corpus) Window(start, end int) Text {
	var b strings.Builder
	var toks []string
	for i := start; i < end; i++ {
		if c.norm[i] == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.norm[i])
		toks = append(toks, c.tokens[i]...)
	}
	n := b.String()
	return Text{Norm: n, n: min(utf8.RuneCountInString(n), MaxCompareRunes), shingles: shingles(toks)}
}
