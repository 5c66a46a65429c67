package training

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SequenceGroup is one side of a sentence-pair batch: token ids of every
// sentence and the number of real tokens in each.
type SequenceGroup struct {
	Tokens  [][]int
	Lengths []int
}

// Len is the number of sentences in the group.
func (g SequenceGroup) Len() int { return len(g.Tokens) }

// PairBatch is what a PairSource yields: aligned groups of normal and
// simplified sentences.
type PairBatch struct {
	Normal SequenceGroup
	Simple SequenceGroup
}

// Labels of the two sentence groups.
const (
	LabelNormal = 0
	LabelSimple = 1
)

// Batch is a classification batch. Sentences, Lengths and Labels are
// parallel: entry i of each describes the same example.
type Batch struct {
	Sentences []*mat.Dense
	Lengths   []int
	Labels    []int
}

// Len is the number of examples.
func (b *Batch) Len() int { return len(b.Labels) }

// AssembleBatch embeds both groups of pair, concatenates them into one batch
// padded to a common length, and labels normal sentences LabelNormal and
// simplified ones LabelSimple. Normal sentences come first.
func AssembleBatch(pair *PairBatch, vocab *Vocabulary) (*Batch, error) {
	for name, g := range map[string]SequenceGroup{"normal": pair.Normal, "simple": pair.Simple} {
		if len(g.Tokens) != len(g.Lengths) {
			return nil, errors.Errorf("%s group has %d sentences but %d lengths", name, len(g.Tokens), len(g.Lengths))
		}
	}
	normal, err := vocab.EmbedSentences(pair.Normal.Tokens)
	if err != nil {
		return nil, errors.Wrap(err, "normal group")
	}
	simple, err := vocab.EmbedSentences(pair.Simple.Tokens)
	if err != nil {
		return nil, errors.Wrap(err, "simple group")
	}

	n := len(normal) + len(simple)
	b := &Batch{
		Sentences: ConcatSentenceBatches(normal, simple, vocab.Padding()),
		Lengths:   make([]int, 0, n),
		Labels:    make([]int, 0, n),
	}
	b.Lengths = append(b.Lengths, pair.Normal.Lengths...)
	b.Lengths = append(b.Lengths, pair.Simple.Lengths...)
	for range normal {
		b.Labels = append(b.Labels, LabelNormal)
	}
	for range simple {
		b.Labels = append(b.Labels, LabelSimple)
	}
	return b, nil
}

// ConcatSentenceBatches joins two groups of embedded sentences, padding every
// sentence with the padding vector up to the longest one in either group.
func ConcatSentenceBatches(a, b []*mat.Dense, padding []float64) []*mat.Dense {
	maxLen := 1
	for _, group := range [][]*mat.Dense{a, b} {
		for _, s := range group {
			if r, _ := s.Dims(); r > maxLen {
				maxLen = r
			}
		}
	}
	out := make([]*mat.Dense, 0, len(a)+len(b))
	for _, group := range [][]*mat.Dense{a, b} {
		for _, s := range group {
			out = append(out, padTo(s, maxLen, padding))
		}
	}
	return out
}

func padTo(s *mat.Dense, rows int, padding []float64) *mat.Dense {
	r, c := s.Dims()
	if r == rows {
		return s
	}
	m := mat.NewDense(rows, c, nil)
	m.Slice(0, r, 0, c).(*mat.Dense).Copy(s)
	for i := r; i < rows; i++ {
		m.SetRow(i, padding)
	}
	return m
}

// Permute reorders the batch so that example j afterwards is example perm[j]
// before. The same permutation is applied to sentences, lengths and labels.
func (b *Batch) Permute(perm []int) error {
	n := b.Len()
	if len(b.Sentences) != n || len(b.Lengths) != n {
		return errors.Errorf("batch is not aligned: %d sentences, %d lengths, %d labels",
			len(b.Sentences), len(b.Lengths), n)
	}
	if len(perm) != n {
		return errors.Errorf("permutation of %d elements for a batch of %d", len(perm), n)
	}
	seen := make([]bool, n)
	for _, p := range perm {
		if p < 0 || p >= n || seen[p] {
			return errors.Errorf("invalid permutation %v", perm)
		}
		seen[p] = true
	}

	sentences := make([]*mat.Dense, n)
	lengths := make([]int, n)
	labels := make([]int, n)
	for j, p := range perm {
		sentences[j] = b.Sentences[p]
		lengths[j] = b.Lengths[p]
		labels[j] = b.Labels[p]
	}
	b.Sentences, b.Lengths, b.Labels = sentences, lengths, labels
	return nil
}

// Shuffle applies one random permutation drawn from rng.
func (b *Batch) Shuffle(rng *rand.Rand) error {
	return b.Permute(rng.Perm(b.Len()))
}
