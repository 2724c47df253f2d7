package textsim

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MaxCompareRunes caps the rune length fed to the edit signal. Longer inputs
// are compared on their prefix so a single comparison stays bounded.
const MaxCompareRunes = 2000

// Text is a comparison-ready form of a string. Build it once with [Prepare]
// and reuse it across many comparisons.
type Text struct {
	Norm     string
	runes    []rune // nil for corpus windows until needed
	n        int    // rune count, capped at MaxCompareRunes
	shingles []uint64
}

// Len returns the number of runes used by the edit signal.
func (t Text) Len() int { return t.n }

func (t Text) runeSlice() []rune {
	if t.runes != nil || t.n == 0 {
		return t.runes
	}
	r := []rune(t.Norm)
	return r[:min(len(r), MaxCompareRunes)]
}

// Score holds the individual signals and their mean.
type Score struct {
	Edit     float64
	Token    float64
	Combined float64
}

// Normalize applies NFKC, case folding and whitespace collapsing.
func Normalize(s string) string {
	s = norm.NFKC.String(Canonical(s))
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Prepare normalizes s and precomputes its runes and token shingles.
func Prepare(s string) Text {
	n := Normalize(s)
	r := []rune(n)
	if len(r) > MaxCompareRunes {
		r = r[:MaxCompareRunes]
	}
	return Text{Norm: n, runes: r, n: len(r), shingles: shingles(Tokens(n))}
}

// Combined returns the combined similarity of two raw strings.
func Combined(a, b string) float64 {
	return Compare(Prepare(a), Prepare(b)).Combined
}

// Compare scores two prepared texts.
func Compare(a, b Text) Score {
	s := Score{
		Edit:  editSimilarity(a.runeSlice(), b.runeSlice()),
		Token: dice(a.shingles, b.shingles),
	}
	s.Combined = (s.Edit + s.Token) / 2
	return s
}

// CompareAtLeast scores a and b like [Compare] but gives up early when the
// combined score cannot reach floor. When ok is true the score equals
// Compare(a, b).
func CompareAtLeast(a, b Text, floor float64) (Score, bool) {
	if (editBound(a.n, b.n)+1)/2 < floor {
		return Score{}, false
	}
	token := dice(a.shingles, b.shingles)
	if (editBound(a.n, b.n)+token)/2 < floor {
		return Score{}, false
	}
	ra, rb := a.runeSlice(), b.runeSlice()
	total := len(ra) + len(rb)
	if total == 0 {
		return Score{Edit: 1, Token: token, Combined: (1 + token) / 2}, true
	}
	// The edit signal needs at least minEdit, so at most maxIndel insertions
	// and deletions. One extra keeps rounding from dropping a borderline pair.
	minEdit := max(0, 2*floor-token)
	maxIndel := int(float64(total)*(1-minEdit)) + 1
	common := lcsBanded(ra, rb, maxIndel)
	if total-2*common > maxIndel {
		return Score{}, false
	}
	s := Score{Edit: 2 * float64(common) / float64(total), Token: token}
	s.Combined = (s.Edit + s.Token) / 2
	return s, true
}

// UpperBound returns a cheap upper bound on Compare(a, b).Combined. The token
// signal is exact; the edit signal is bounded by the length ratio.
func UpperBound(a, b Text) float64 {
	return (editBound(a.n, b.n) + dice(a.shingles, b.shingles)) / 2
}

// EditSimilarity is 1 - indel(a, b) / (len(a) + len(b)) on normalized input,
// where indel counts insertions and deletions.
func EditSimilarity(a, b string) float64 {
	return editSimilarity(Prepare(a).runes, Prepare(b).runes)
}

// TokenSimilarity is the Dice overlap of word shingles on normalized input.
func TokenSimilarity(a, b string) float64 {
	return dice(Prepare(a).shingles, Prepare(b).shingles)
}

// Tokens splits s into maximal runs of letters, digits and underscores.
func Tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// shingles returns the sorted, distinct FNV-1a hashes of every token and
// every adjacent token pair.
func shingles(tokens []string) []uint64 {
	set := make([]uint64, 0, 2*len(tokens))
	for i, t := range tokens {
		set = append(set, shingleHash(t, ""))
		if i+1 < len(tokens) {
			set = append(set, shingleHash(t, tokens[i+1]))
		}
	}
	slices.Sort(set)
	return slices.Compact(set)
}

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// shingleHash is FNV-1a over a, or over a, a space and b.
func shingleHash(a, b string) uint64 {
	h := uint64(fnvOffset64)
	h = fnvAdd(h, a)
	if b != "" {
		h = fnvAdd(h, " ")
		h = fnvAdd(h, b)
	}
	return h
}

func fnvAdd(h uint64, s string) uint64 {
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}

// dice merges two sorted shingle sets.
func dice(a, b []uint64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			shared++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}

func editBound(la, lb int) float64 {
	if la+lb == 0 {
		return 1
	}
	return 2 * float64(min(la, lb)) / float64(la+lb)
}

func editSimilarity(a, b []rune) float64 {
	if len(a)+len(b) == 0 {
		return 1
	}
	return 2 * float64(lcs(a, b)) / float64(len(a)+len(b))
}

// lcs returns the length of the longest common subsequence using two rows
// sized by the shorter input.
func lcs(a, b []rune) int {
	return lcsBanded(a, b, len(a)+len(b))
}

// lcsBanded computes the LCS over cells within band of the diagonal. The
// result is exact whenever the pair is at most band insertions and deletions
// apart, and never exceeds the true LCS otherwise.
func lcsBanded(a, b []rune, band int) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i, ra := range a {
		lo, hi := max(0, i-band), min(len(b), i+band+1)
		for j := lo; j < hi; j++ {
			rb := b[j]
			switch {
			case ra == rb:
				cur[j+1] = prev[j] + 1
			case prev[j+1] >= cur[j]:
				cur[j+1] = prev[j+1]
			default:
				cur[j+1] = cur[j]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
