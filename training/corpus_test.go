package training

import (
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func writePairs(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pairs.tsv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write pairs: %v", err)
	}
	return path
}

func TestLoadPairs(t *testing.T) {
	path := writePairs(t,
		"The Cat sat upon the mat\tthe cat sat",
		"It was \"quoted\" here\tsimple",
	)
	pairs, err := LoadPairs(path)
	if err != nil {
		t.Fatalf("LoadPairs failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if strings.Join(pairs[0].Normal, " ") != "the cat sat upon the mat" || len(pairs[0].Simple) != 3 {
		t.Fatalf("unexpected first pair %+v", pairs[0])
	}

	if _, err := LoadPairs(writePairs(t, "only one field")); err == nil {
		t.Fatalf("expected error for a line without a tab")
	}
	if _, err := LoadPairs(writePairs(t, "a\tb\tc")); err == nil {
		t.Fatalf("expected error for a line with two tabs")
	}
}

func TestLoadPairs_LeadingQuotes(t *testing.T) {
	path := writePairs(t,
		"\"Hello\" he said.\thi there",
		"the cat sat\t\"a cat\"",
		"",
		"\"unterminated quote\tstill fine",
	)
	pairs, err := LoadPairs(path)
	if err != nil {
		t.Fatalf("LoadPairs failed: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
	if got := strings.Join(pairs[0].Normal, " "); got != "\"hello\" he said." {
		t.Fatalf("unexpected first sentence %q", got)
	}
	if got := strings.Join(pairs[1].Simple, " "); got != "\"a cat\"" {
		t.Fatalf("unexpected second simple sentence %q", got)
	}
	if got := strings.Join(pairs[2].Simple, " "); got != "still fine" {
		t.Fatalf("unexpected third simple sentence %q", got)
	}
}

func TestLoadPairs_MissingFile(t *testing.T) {
	if _, err := LoadPairs(filepath.Join(t.TempDir(), "missing.tsv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSplitPairs(t *testing.T) {
	pairs := make([]Pair, 10)
	train, valid := SplitPairs(pairs, 0.9, rand.New(rand.NewSource(1)))
	if len(train) != 9 || len(valid) != 1 {
		t.Fatalf("expected 9/1 split, got %d/%d", len(train), len(valid))
	}
}

func TestInterleaveKeys(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{0, 0, 0},
		{0, 1, 1},
		{1, 0, 2},
		{1, 1, 3},
		{3, 0, 10},
		{2, 3, 13},
	}
	for _, c := range cases {
		if got := InterleaveKeys(c.a, c.b); got != c.want {
			t.Errorf("InterleaveKeys(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func iteratorVocab(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := NewVocabulary([]string{PaddingToken, UnknownToken, "a"}, mat.NewDense(3, 1, []float64{0, 1, 2}))
	if err != nil {
		t.Fatalf("NewVocabulary failed: %v", err)
	}
	return v
}

func repeat(tok string, n int) []string {
	s := make([]string, n)
	for i := range s {
		s[i] = tok
	}
	return s
}

func TestPairIterator_Batches(t *testing.T) {
	pairs := make([]Pair, 5)
	for i := range pairs {
		pairs[i] = Pair{Normal: repeat("a", i+1), Simple: repeat("zzz", 1)}
	}
	it, err := NewPairIterator(pairs, iteratorVocab(t), 2, nil, false)
	if err != nil {
		t.Fatalf("NewPairIterator failed: %v", err)
	}

	var sizes []int
	for {
		b, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if b.Normal.Len() != b.Simple.Len() || len(b.Normal.Lengths) != b.Normal.Len() {
			t.Fatalf("groups not aligned: %+v", b)
		}
		sizes = append(sizes, b.Normal.Len())
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[2] != 1 {
		t.Fatalf("expected batches [2 2 1], got %v", sizes)
	}

	it.Reset()
	b, err := it.Next()
	if err != nil {
		t.Fatalf("Next after Reset failed: %v", err)
	}
	if b.Normal.Lengths[0] != 1 || b.Simple.Tokens[0][0] != 1 {
		t.Fatalf("unexpected first batch after Reset: %+v", b)
	}

	if _, err := NewPairIterator(pairs, iteratorVocab(t), 0, nil, false); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestPairIterator_SortByLength(t *testing.T) {
	pairs := []Pair{
		{Normal: repeat("a", 5), Simple: repeat("a", 5)},
		{Normal: repeat("a", 1), Simple: repeat("a", 1)},
		{Normal: repeat("a", 3), Simple: repeat("a", 2)},
	}
	it, err := NewPairIterator(pairs, iteratorVocab(t), 3, nil, true)
	if err != nil {
		t.Fatalf("NewPairIterator failed: %v", err)
	}
	b, err := it.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	got := b.Normal.Lengths
	if got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Fatalf("expected lengths sorted [1 3 5], got %v", got)
	}
}
