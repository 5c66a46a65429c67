package training

import (
	"bufio"
	"io"
	"math/rand"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Pair is a sentence and its simplified rewrite, already tokenized.
type Pair struct {
	Normal []string
	Simple []string
}

// Tokenize lower-cases s and splits it on whitespace.
func Tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// LoadPairs reads a tab separated file of "normal<TAB>simple" lines. Quotes
// have no special meaning. Blank lines are skipped; any other line without
// exactly one tab is an error.
func LoadPairs(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open pairs %s", path)
	}
	defer f.Close()

	pairs := make([]Pair, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != 2 {
			return nil, errors.Errorf("%s:%d: expected 2 tab separated fields, got %d", path, line, len(fields))
		}
		pairs = append(pairs, Pair{Normal: Tokenize(fields[0]), Simple: Tokenize(fields[1])})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read pairs %s", path)
	}
	return pairs, nil
}

// SplitPairs shuffles pairs with rng and splits them into a training part
// holding factor of them and a validation part with the rest.
func SplitPairs(pairs []Pair, factor float64, rng *rand.Rand) (train, valid []Pair) {
	shuffled := make([]Pair, len(pairs))
	for i, j := range rng.Perm(len(pairs)) {
		shuffled[i] = pairs[j]
	}
	n := int(float64(len(pairs)) * factor)
	return shuffled[:n], shuffled[n:]
}

// Sentences returns every sentence of pairs, both sides.
func Sentences(pairs []Pair) [][]string {
	out := make([][]string, 0, 2*len(pairs))
	for _, p := range pairs {
		out = append(out, p.Normal, p.Simple)
	}
	return out
}

// InterleaveKeys combines two lengths into one sort key by interleaving
// their 16 low bits, so pairs with similar lengths on both sides sort close.
func InterleaveKeys(a, b int) int {
	key := 0
	for i := 15; i >= 0; i-- {
		key = key<<2 | (a>>i&1)<<1 | b>>i&1
	}
	return key
}

// PairSource yields PairBatches until io.EOF.
type PairSource interface {
	Next() (*PairBatch, error)
	// Reset starts a new pass over the data.
	Reset()
}

type encodedPair struct {
	normal, simple []int
}

// PairIterator is an in-memory PairSource over encoded pairs.
type PairIterator struct {
	pairs     []encodedPair
	batchSize int
	rng       *rand.Rand
	sortByLen bool

	order []int
	pos   int
}

var _ PairSource = (*PairIterator)(nil)

// NewPairIterator encodes pairs with vocab. With rng set the order is
// reshuffled on every Reset; otherwise, with sortByLen, pairs are ordered by
// InterleaveKeys of their lengths, else kept in input order.
func NewPairIterator(pairs []Pair, vocab *Vocabulary, batchSize int, rng *rand.Rand, sortByLen bool) (*PairIterator, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("invalid batch size %d", batchSize)
	}
	it := &PairIterator{
		pairs:     make([]encodedPair, len(pairs)),
		batchSize: batchSize,
		rng:       rng,
		sortByLen: sortByLen,
	}
	for i, p := range pairs {
		it.pairs[i] = encodedPair{normal: vocab.Encode(p.Normal), simple: vocab.Encode(p.Simple)}
	}
	it.Reset()
	return it, nil
}

// Reset implements PairSource.
func (it *PairIterator) Reset() {
	it.pos = 0
	if it.rng != nil {
		it.order = it.rng.Perm(len(it.pairs))
		return
	}
	it.order = make([]int, len(it.pairs))
	for i := range it.order {
		it.order[i] = i
	}
	if it.sortByLen {
		key := func(i int) int {
			p := it.pairs[it.order[i]]
			return InterleaveKeys(len(p.normal), len(p.simple))
		}
		sort.SliceStable(it.order, func(i, j int) bool { return key(i) < key(j) })
	}
}

// Len is the number of pairs per pass.
func (it *PairIterator) Len() int { return len(it.pairs) }

// Next implements PairSource. The last batch of a pass may be smaller.
func (it *PairIterator) Next() (*PairBatch, error) {
	if it.pos >= len(it.order) {
		return nil, io.EOF
	}
	end := min(it.pos+it.batchSize, len(it.order))
	batch := &PairBatch{}
	for _, idx := range it.order[it.pos:end] {
		p := it.pairs[idx]
		batch.Normal.Tokens = append(batch.Normal.Tokens, p.normal)
		batch.Normal.Lengths = append(batch.Normal.Lengths, len(p.normal))
		batch.Simple.Tokens = append(batch.Simple.Tokens, p.simple)
		batch.Simple.Lengths = append(batch.Simple.Lengths, len(p.simple))
	}
	it.pos = end
	return batch, nil
}
