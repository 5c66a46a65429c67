package training

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CrossEntropy is the mean softmax cross-entropy over a batch. Backward
// feeds the gradient to the model that produced the scores.
type CrossEntropy struct {
	model Differentiable

	probs  *mat.Dense
	labels []int
}

var _ Criterion = (*CrossEntropy)(nil)

// NewCrossEntropy returns a criterion propagating into model.
func NewCrossEntropy(model Differentiable) *CrossEntropy {
	return &CrossEntropy{model: model}
}

// Loss implements Criterion.
func (c *CrossEntropy) Loss(scores *mat.Dense, labels []int) (float64, error) {
	rows, cols := scores.Dims()
	if rows != len(labels) {
		return 0, errors.Errorf("%d score rows but %d labels", rows, len(labels))
	}
	probs := LogSoftmax(scores)
	var loss float64
	for i, l := range labels {
		if l < 0 || l >= cols {
			return 0, errors.Errorf("label %d at position %d outside [0, %d)", l, i, cols)
		}
		loss -= probs.At(i, l)
	}
	data := probs.RawMatrix().Data
	for i := range data {
		data[i] = math.Exp(data[i])
	}
	c.probs = probs
	c.labels = append(c.labels[:0], labels...)
	return loss / float64(rows), nil
}

// Backward implements Criterion.
func (c *CrossEntropy) Backward() error {
	if c.probs == nil {
		return errors.New("Backward called before Loss")
	}
	rows, _ := c.probs.Dims()
	grad := mat.DenseCopyOf(c.probs)
	for i, l := range c.labels {
		grad.Set(i, l, grad.At(i, l)-1)
	}
	grad.Scale(1/float64(rows), grad)
	return c.model.Backward(grad)
}

// LogSoftmax returns the row-wise log-softmax of scores.
func LogSoftmax(scores *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(scores)
	rows, _ := out.Dims()
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		floats.AddConst(-floats.LogSumExp(row), row)
	}
	return out
}

// Predictions returns the argmax class of every score row.
func Predictions(scores *mat.Dense) []int {
	rows, _ := scores.Dims()
	preds := make([]int, rows)
	for i := range preds {
		preds[i] = floats.MaxIdx(mat.Row(nil, i, scores))
	}
	return preds
}

// Accuracy is the percentage of predictions equal to labels.
func Accuracy(preds, labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	correct := 0
	for i := range labels {
		if preds[i] == labels[i] {
			correct++
		}
	}
	return 100 * float64(correct) / float64(len(labels))
}
