// Package training assembles sentence-pair batches into labelled,
// shuffled classification batches and runs optimization steps over them.
//
// The numerical pieces (model, loss, optimizer) are collaborators behind
// small interfaces; this package ships a pure-Go reference set of them
// (LinearNet, CrossEntropy, SGD, Adam) so the step function can be driven
// end to end without an external framework.
package training

import (
	"bufio"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Reserved tokens present in every vocabulary built here.
const (
	PaddingToken = "<pad>"
	UnknownToken = "<unk>"
)

// Vocabulary maps tokens to ids and ids to fixed-size embedding vectors.
// Row i of Vectors is the embedding of Itos[i].
type Vocabulary struct {
	Itos    []string
	Stoi    map[string]int
	Vectors *mat.Dense
}

// NewVocabulary pairs tokens with their embedding rows. The padding token
// must be part of itos.
func NewVocabulary(itos []string, vectors *mat.Dense) (*Vocabulary, error) {
	rows, _ := vectors.Dims()
	if rows != len(itos) {
		return nil, errors.Errorf("vocabulary has %d tokens but %d vectors", len(itos), rows)
	}
	stoi := make(map[string]int, len(itos))
	for i, tok := range itos {
		if _, dup := stoi[tok]; dup {
			return nil, errors.Errorf("duplicate token %q in vocabulary", tok)
		}
		stoi[tok] = i
	}
	if _, ok := stoi[PaddingToken]; !ok {
		return nil, errors.Errorf("vocabulary is missing the padding token %q", PaddingToken)
	}
	return &Vocabulary{Itos: itos, Stoi: stoi, Vectors: vectors}, nil
}

// BuildVocabulary collects every token appearing at least minFreq times in
// sentences, most frequent first, after the reserved tokens. Vectors are
// drawn from N(0, 0.1²) with rng; the padding vector is all zeros.
func BuildVocabulary(sentences [][]string, dim, minFreq int, rng *rand.Rand) (*Vocabulary, error) {
	if dim <= 0 {
		return nil, errors.Errorf("invalid embedding size %d", dim)
	}
	freq := make(map[string]int)
	for _, s := range sentences {
		for _, tok := range s {
			freq[tok]++
		}
	}
	tokens := make([]string, 0, len(freq))
	for tok, n := range freq {
		if n >= minFreq && tok != PaddingToken && tok != UnknownToken {
			tokens = append(tokens, tok)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		if freq[tokens[i]] != freq[tokens[j]] {
			return freq[tokens[i]] > freq[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	itos := append([]string{PaddingToken, UnknownToken}, tokens...)

	vectors := mat.NewDense(len(itos), dim, nil)
	for i := 1; i < len(itos); i++ {
		row := vectors.RawRowView(i)
		for j := range row {
			row[j] = rng.NormFloat64() * 0.1
		}
	}
	return NewVocabulary(itos, vectors)
}

// ReadVectors overwrites the rows of known tokens with pretrained vectors
// from a whitespace separated text file ("token v1 v2 ..."), as published
// for GloVe. It returns how many tokens were found.
func (v *Vocabulary) ReadVectors(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to open vectors %s", path)
	}
	defer f.Close()

	dim := v.Dim()
	found := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		id, ok := v.Stoi[fields[0]]
		if !ok || fields[0] == PaddingToken {
			continue
		}
		if len(fields)-1 != dim {
			return found, errors.Errorf("%s:%d: expected %d values, got %d", path, line, dim, len(fields)-1)
		}
		row := v.Vectors.RawRowView(id)
		for j, s := range fields[1:] {
			val, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return found, errors.Wrapf(err, "%s:%d", path, line)
			}
			row[j] = val
		}
		found++
	}
	if err := scanner.Err(); err != nil {
		return found, errors.Wrapf(err, "failed to read vectors %s", path)
	}
	return found, nil
}

// Len is the number of tokens.
func (v *Vocabulary) Len() int { return len(v.Itos) }

// Dim is the embedding size.
func (v *Vocabulary) Dim() int {
	_, c := v.Vectors.Dims()
	return c
}

// Lookup returns the id of token, or of UnknownToken (-1 if that is absent).
func (v *Vocabulary) Lookup(token string) int {
	if id, ok := v.Stoi[token]; ok {
		return id
	}
	if id, ok := v.Stoi[UnknownToken]; ok {
		return id
	}
	return -1
}

// Encode maps tokens to ids.
func (v *Vocabulary) Encode(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = v.Lookup(tok)
	}
	return ids
}

// Padding returns a copy of the padding token's vector.
func (v *Vocabulary) Padding() []float64 {
	return mat.Row(nil, v.Stoi[PaddingToken], v.Vectors)
}

// EmbedSentences turns every sentence of token ids into a [len × Dim]
// matrix of embeddings. Empty sentences become a single padding row.
func (v *Vocabulary) EmbedSentences(sentences [][]int) ([]*mat.Dense, error) {
	dim := v.Dim()
	out := make([]*mat.Dense, len(sentences))
	for i, ids := range sentences {
		if len(ids) == 0 {
			out[i] = mat.NewDense(1, dim, v.Padding())
			continue
		}
		m := mat.NewDense(len(ids), dim, nil)
		for t, id := range ids {
			if id < 0 || id >= v.Len() {
				return nil, errors.Errorf("sentence %d: token id %d outside vocabulary of %d", i, id, v.Len())
			}
			m.SetRow(t, v.Vectors.RawRowView(id))
		}
		out[i] = m
	}
	return out, nil
}
