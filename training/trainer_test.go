package training

import (
	"io"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// recorder is a fake model, criterion and optimizer logging calls in order.
type recorder struct {
	calls   []string
	lengths []int
	labels  []int
	scores  *mat.Dense
	stepErr error
}

func (r *recorder) Forward(sentences []*mat.Dense, lengths []int) (*mat.Dense, error) {
	r.calls = append(r.calls, "forward")
	r.lengths = append([]int(nil), lengths...)
	// Sentences longer than 2 tokens score as normal, the rest as simple.
	r.scores = mat.NewDense(len(lengths), 2, nil)
	for i, l := range lengths {
		if l > 2 {
			r.scores.Set(i, LabelNormal, 1)
		} else {
			r.scores.Set(i, LabelSimple, 1)
		}
	}
	return r.scores, nil
}

func (r *recorder) Loss(scores *mat.Dense, labels []int) (float64, error) {
	r.calls = append(r.calls, "loss")
	r.labels = append([]int(nil), labels...)
	return 0.5, nil
}

func (r *recorder) Backward() error {
	r.calls = append(r.calls, "backward")
	return nil
}

func (r *recorder) ZeroGrad() { r.calls = append(r.calls, "zero") }

func (r *recorder) Step() error {
	r.calls = append(r.calls, "step")
	return r.stepErr
}

func recorderTrainer(t *testing.T, r *recorder) *Trainer {
	return &Trainer{Model: r, Criterion: r, Optimizer: r, Vocab: testVocab(t), Rand: rand.New(rand.NewSource(1))}
}

// pairOf has normal sentences of length 3 and simple ones of length 1.
func pairOf(n int) *PairBatch {
	p := &PairBatch{}
	for i := 0; i < n; i++ {
		p.Normal.Tokens = append(p.Normal.Tokens, []int{2, 3, 4})
		p.Normal.Lengths = append(p.Normal.Lengths, 3)
		p.Simple.Tokens = append(p.Simple.Tokens, []int{2})
		p.Simple.Lengths = append(p.Simple.Lengths, 1)
	}
	return p
}

func TestTrainerStep_CallOrder(t *testing.T) {
	r := &recorder{}
	res, err := recorderTrainer(t, r).Step(pairOf(2))
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	want := []string{"zero", "forward", "loss", "backward", "step"}
	if len(r.calls) != len(want) {
		t.Fatalf("calls %v, want %v", r.calls, want)
	}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Fatalf("calls %v, want %v", r.calls, want)
		}
	}
	if res.Size != 4 || res.Loss != 0.5 || res.Accuracy != 100 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestTrainerStep_LabelsFollowPermutation(t *testing.T) {
	for name, perm := range map[string][]int{
		"identity": {0, 1, 2, 3, 4, 5},
		"reversal": {5, 4, 3, 2, 1, 0},
	} {
		t.Run(name, func(t *testing.T) {
			r := &recorder{}
			tr := recorderTrainer(t, r)
			tr.Permutation = func(n int) []int { return perm }
			if _, err := tr.Step(pairOf(3)); err != nil {
				t.Fatalf("Step failed: %v", err)
			}
			for j, p := range perm {
				wantLabel := LabelNormal
				wantLen := 3
				if p >= 3 {
					wantLabel, wantLen = LabelSimple, 1
				}
				if r.labels[j] != wantLabel || r.lengths[j] != wantLen {
					t.Fatalf("position %d: label %d length %d, want %d and %d",
						j, r.labels[j], r.lengths[j], wantLabel, wantLen)
				}
			}
		})
	}
}

func TestTrainerStep_RandomPermutationStaysAligned(t *testing.T) {
	r := &recorder{}
	tr := recorderTrainer(t, r)
	for i := 0; i < 10; i++ {
		if _, err := tr.Step(pairOf(5)); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		for j := range r.labels {
			if (r.labels[j] == LabelNormal) != (r.lengths[j] == 3) {
				t.Fatalf("step %d position %d: label %d with length %d", i, j, r.labels[j], r.lengths[j])
			}
		}
	}
}

func TestTrainerStep_PropagatesErrors(t *testing.T) {
	sentinel := errors.New("non-finite loss")
	r := &recorder{stepErr: sentinel}
	if _, err := recorderTrainer(t, r).Step(pairOf(1)); !errors.Is(err, sentinel) {
		t.Fatalf("expected optimizer error, got %v", err)
	}
}

func TestTrainerStep_RequiresPermutationSource(t *testing.T) {
	r := &recorder{}
	tr := recorderTrainer(t, r)
	tr.Rand = nil
	if _, err := tr.Step(pairOf(2)); !errors.Is(err, ErrNoPermutation) {
		t.Fatalf("expected ErrNoPermutation, got %v", err)
	}
	if len(r.calls) != 0 {
		t.Fatalf("model touched without a permutation: %v", r.calls)
	}
}

// sliceSource yields the given batches once per pass.
type sliceSource struct {
	batches []*PairBatch
	pos     int
	resets  int
}

func (s *sliceSource) Next() (*PairBatch, error) {
	if s.pos >= len(s.batches) {
		return nil, io.EOF
	}
	s.pos++
	return s.batches[s.pos-1], nil
}

func (s *sliceSource) Reset() {
	s.pos = 0
	s.resets++
}

func TestTrainEpoch_StepsAndEvaluates(t *testing.T) {
	r := &recorder{}
	tr := recorderTrainer(t, r)
	train := &sliceSource{batches: []*PairBatch{pairOf(2), pairOf(1), pairOf(3)}}
	valid := &sliceSource{batches: []*PairBatch{pairOf(2)}}

	res, err := tr.TrainEpoch(1, train, valid)
	if err != nil {
		t.Fatalf("TrainEpoch failed: %v", err)
	}
	if res.Train.Steps != 3 || res.Train.Examples != 12 {
		t.Fatalf("unexpected train metrics %+v", res.Train)
	}
	if res.Valid == nil || res.Valid.Steps != 1 || res.Valid.Examples != 4 {
		t.Fatalf("unexpected valid metrics %+v", res.Valid)
	}
	steps := 0
	for _, c := range r.calls {
		if c == "step" {
			steps++
		}
	}
	if steps != 3 {
		t.Fatalf("expected 3 optimizer steps, got %d (validation must not step)", steps)
	}
	if train.resets != 1 || valid.resets != 1 {
		t.Fatalf("sources not reset: train=%d valid=%d", train.resets, valid.resets)
	}
}
