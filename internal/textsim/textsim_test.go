package textsim

import (
	"math"
	"strings"
	"testing"
)

func TestHash_Format(t *testing.T) {
	h := Hash([]byte("hello"))
	if !strings.HasPrefix(h, "sha256:") {
		t.Fatalf("Hash() = %q, want sha256: prefix", h)
	}
	if len(h) != len("sha256:")+64 {
		t.Errorf("Hash() length = %d, want %d", len(h), len("sha256:")+64)
	}
	if Hash([]byte("hello")) != h {
		t.Error("Hash() is not deterministic")
	}
}

func TestHashText_LineEndingsIgnored(t *testing.T) {
	if HashText("a\r\nb") != HashText("a\nb") {
		t.Error("CRLF and LF should hash identically")
	}
	if HashText("a \nb") == HashText("a\nb") {
		t.Error("trailing whitespace must stay significant for exact hashes")
	}
}

func TestHashText_NFC(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"
	if HashText(composed) != HashText(decomposed) {
		t.Error("NFC-equivalent strings should hash identically")
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single no newline", "a", []string{"a"}},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"blank line kept", "a\n\nb", []string{"a", "", "b"}},
		{"only newline", "\n", []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLines(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitLines(%q) = %q, want %q", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SplitLines(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Hello   World ", "hello world"},
		{"A\tB\nC", "a b c"},
		{"ＡＢ", "ab"}, // fullwidth letters fold under NFKC
	}
	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("if err != nil { return foo_bar(x) }")
	want := []string{"if", "err", "nil", "return", "foo_bar", "x"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Tokens() = %v, want %v", got, want)
	}
}

func TestCombined_ThresholdExample(t *testing.T) {
	got := Combined("linear scaling model", "piecewise linear scaling")
	if got <= 0.6 {
		t.Errorf("Combined() = %.3f, want > 0.6", got)
	}
}

func TestCombined_UnrelatedBelowThreshold(t *testing.T) {
	pairs := [][2]string{
		{"needs null check here", "the quick brown fox"},
		{"return nil", "x := compute(y)"},
		{"SELECT * FROM users", "func main() {"},
	}
	for _, p := range pairs {
		if got := Combined(p[0], p[1]); got > 0.6 {
			t.Errorf("Combined(%q, %q) = %.3f, want <= 0.6", p[0], p[1], got)
		}
	}
}

func TestCombined_Identical(t *testing.T) {
	if got := Combined("Some Text", "some   text"); got != 1 {
		t.Errorf("Combined() of normalized-equal strings = %v, want 1", got)
	}
	if got := Combined("", ""); got != 1 {
		t.Errorf("Combined(empty, empty) = %v, want 1", got)
	}
}

func TestEditSimilarity(t *testing.T) {
	// LCS("linear scaling model", "piecewise linear scaling") covers "linear scaling".
	got := EditSimilarity("linear scaling model", "piecewise linear scaling")
	if got < 28.0/44.0-1e-9 {
		t.Errorf("EditSimilarity() = %.4f, want >= %.4f", got, 28.0/44.0)
	}
	if EditSimilarity("abc", "") != 0 {
		t.Error("EditSimilarity against empty should be 0")
	}
}

func TestTokenSimilarity(t *testing.T) {
	got := TokenSimilarity("linear scaling model", "piecewise linear scaling")
	if math.Abs(got-0.6) > 1e-9 {
		t.Errorf("TokenSimilarity() = %v, want 0.6", got)
	}
}

func TestUpperBound(t *testing.T) {
	pairs := [][2]string{
		{"linear scaling model", "piecewise linear scaling"},
		{"func (s *Store) Save() error {", "func (s *Store) Load() (*Record, error) {"},
		{"a", "completely different and much longer text"},
	}
	for _, p := range pairs {
		a, b := Prepare(p[0]), Prepare(p[1])
		if ub, sc := UpperBound(a, b), Compare(a, b).Combined; ub+1e-12 < sc {
			t.Errorf("UpperBound(%q, %q) = %v < score %v", p[0], p[1], ub, sc)
		}
	}
}

func TestPrepare_CapsRunes(t *testing.T) {
	long := strings.Repeat("x", MaxCompareRunes+500)
	if got := Prepare(long).Len(); got != MaxCompareRunes {
		t.Errorf("Prepare().Len() = %d, want %d", got, MaxCompareRunes)
	}
}

func TestCorpus_WindowMatchesPrepare(t *testing.T) {
	lines := []string{"func Foo(a int) {", "", "\treturn  a * 2", "}", "ＡＢＣ done"}
	c := NewCorpus(lines)
	if c.Len() != len(lines) {
		t.Fatalf("Len = %d", c.Len())
	}
	for start := 0; start < len(lines); start++ {
		for end := start + 1; end <= len(lines); end++ {
			got := c.Window(start, end)
			want := Prepare(strings.Join(lines[start:end], "\n"))
			if got.Norm != want.Norm {
				t.Errorf("Window(%d,%d).Norm = %q, want %q", start, end, got.Norm, want.Norm)
			}
			if s := Compare(got, want).Combined; s != 1 {
				t.Errorf("Window(%d,%d) vs Prepare = %v, want 1", start, end, s)
			}
		}
	}
}

func TestCompareAtLeast(t *testing.T) {
	texts := []string{
		"total := computeTotal(items, taxRate)",
		"total := computeTotal(items, taxRate, discount)",
		"result12 := computeTotal(items[37], taxRate, discount) // x",
		"result13 := computeTotal(items[74], taxRate, discount)",
		"linear scaling model",
		"piecewise linear scaling",
		"return nil",
		"",
	}
	for _, x := range texts {
		for _, y := range texts {
			a, b := Prepare(x), Prepare(y)
			want := Compare(a, b)
			for _, floor := range []float64{0, 0.3, 0.6, 0.85, 0.99} {
				got, ok := CompareAtLeast(a, b, floor)
				if want.Combined >= floor && !ok {
					t.Errorf("CompareAtLeast(%q, %q, %v) rejected score %v", x, y, floor, want.Combined)
				}
				if ok && got != want {
					t.Errorf("CompareAtLeast(%q, %q, %v) = %+v, want %+v", x, y, floor, got, want)
				}
			}
		}
	}
}

func TestLCSBanded(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"abcdef", "abcdef"},
		{"abc", "xyzabc"},
		{"computeTotal(items, taxRate)", "computeTotal(items, taxRate, discount)"},
	}
	for _, p := range pairs {
		a, b := []rune(p[0]), []rune(p[1])
		full := lcs(a, b)
		indel := len(a) + len(b) - 2*full
		for band := 0; band <= len(a)+len(b); band++ {
			got := lcsBanded(a, b, band)
			if got > full {
				t.Errorf("lcsBanded(%q, %q, %d) = %d exceeds LCS %d", p[0], p[1], band, got, full)
			}
			if band >= indel && got != full {
				t.Errorf("lcsBanded(%q, %q, %d) = %d, want %d", p[0], p[1], band, got, full)
			}
		}
	}
}
