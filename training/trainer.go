package training

import (
	"io"
	"math/rand"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Trainer runs optimization steps of a sentence classifier on pair batches.
type Trainer struct {
	Model     Model
	Criterion Criterion
	Optimizer Optimizer
	Vocab     *Vocabulary

	// Rand draws the per-batch permutation.
	Rand *rand.Rand

	// Permutation, if set, replaces Rand.Perm. Useful to force an order.
	Permutation func(n int) []int
}

// StepResult reports one step.
type StepResult struct {
	Loss float64
	// Accuracy in percent.
	Accuracy float64
	// Size is the number of sentences in the assembled batch.
	Size int
}

// ErrNoPermutation is returned by Step when neither Rand nor Permutation
// is set.
var ErrNoPermutation = errors.New("trainer has neither Rand nor Permutation")

func (t *Trainer) perm(n int) ([]int, error) {
	switch {
	case t.Permutation != nil:
		return t.Permutation(n), nil
	case t.Rand != nil:
		return t.Rand.Perm(n), nil
	}
	return nil, ErrNoPermutation
}

// Step assembles pair into a labelled batch, shuffles it with a single
// permutation shared by sentences, lengths and labels, and runs one
// zero-grad / forward / loss / backward / update cycle.
func (t *Trainer) Step(pair *PairBatch) (StepResult, error) {
	batch, err := AssembleBatch(pair, t.Vocab)
	if err != nil {
		return StepResult{}, err
	}
	perm, err := t.perm(batch.Len())
	if err != nil {
		return StepResult{}, err
	}
	if err := batch.Permute(perm); err != nil {
		return StepResult{}, err
	}

	t.Optimizer.ZeroGrad()
	scores, err := t.Model.Forward(batch.Sentences, batch.Lengths)
	if err != nil {
		return StepResult{}, errors.Wrap(err, "forward")
	}
	loss, err := t.Criterion.Loss(scores, batch.Labels)
	if err != nil {
		return StepResult{}, errors.Wrap(err, "loss")
	}
	if err := t.Criterion.Backward(); err != nil {
		return StepResult{}, errors.Wrap(err, "backward")
	}
	acc := Accuracy(Predictions(scores), batch.Labels)
	if err := t.Optimizer.Step(); err != nil {
		return StepResult{}, errors.Wrap(err, "optimizer step")
	}
	return StepResult{Loss: loss, Accuracy: acc, Size: batch.Len()}, nil
}

// EvalStep computes loss and accuracy of pair without updating anything.
func (t *Trainer) EvalStep(pair *PairBatch) (StepResult, error) {
	batch, err := AssembleBatch(pair, t.Vocab)
	if err != nil {
		return StepResult{}, err
	}
	scores, err := t.Model.Forward(batch.Sentences, batch.Lengths)
	if err != nil {
		return StepResult{}, errors.Wrap(err, "forward")
	}
	loss, err := t.Criterion.Loss(scores, batch.Labels)
	if err != nil {
		return StepResult{}, errors.Wrap(err, "loss")
	}
	return StepResult{Loss: loss, Accuracy: Accuracy(Predictions(scores), batch.Labels), Size: batch.Len()}, nil
}

// Metrics are size-weighted averages over a pass.
type Metrics struct {
	Loss     float64
	Accuracy float64
	Steps    int
	Examples int
}

func (m *Metrics) add(r StepResult) {
	m.Loss += r.Loss * float64(r.Size)
	m.Accuracy += r.Accuracy * float64(r.Size)
	m.Steps++
	m.Examples += r.Size
}

func (m *Metrics) finish() {
	if m.Examples > 0 {
		m.Loss /= float64(m.Examples)
		m.Accuracy /= float64(m.Examples)
	}
}

// run feeds every batch of src to step.
func run(src PairSource, step func(*PairBatch) (StepResult, error)) (Metrics, error) {
	var m Metrics
	src.Reset()
	for {
		pair, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return m, err
		}
		r, err := step(pair)
		if err != nil {
			return m, errors.Wrapf(err, "step %d", m.Steps)
		}
		klog.V(2).Infof("step %d: loss=%.4f acc=%.2f%%", m.Steps, r.Loss, r.Accuracy)
		m.add(r)
	}
	m.finish()
	return m, nil
}

// Evaluate runs EvalStep over every batch of src.
func (t *Trainer) Evaluate(src PairSource) (Metrics, error) {
	return run(src, t.EvalStep)
}

// EpochResult are the metrics of one training epoch.
type EpochResult struct {
	Epoch int
	Train Metrics
	Valid *Metrics
}

// TrainEpoch runs Step over every batch of train, then evaluates on valid
// if it is not nil.
func (t *Trainer) TrainEpoch(epoch int, train, valid PairSource) (EpochResult, error) {
	res := EpochResult{Epoch: epoch}
	var err error
	if res.Train, err = run(train, t.Step); err != nil {
		return res, errors.Wrapf(err, "epoch %d", epoch)
	}
	klog.Infof("epoch %d: train loss=%.4f acc=%.2f%% (%d steps)",
		epoch, res.Train.Loss, res.Train.Accuracy, res.Train.Steps)
	if valid == nil {
		return res, nil
	}
	v, err := t.Evaluate(valid)
	if err != nil {
		return res, errors.Wrapf(err, "epoch %d validation", epoch)
	}
	res.Valid = &v
	klog.Infof("epoch %d: valid loss=%.4f acc=%.2f%%", epoch, v.Loss, v.Accuracy)
	return res, nil
}
