package training

import (
	"gonum.org/v1/gonum/mat"
)

// Model maps a batch of padded sentences and their real lengths to per-class
// scores, one row per sentence.
type Model interface {
	Forward(sentences []*mat.Dense, lengths []int) (*mat.Dense, error)
}

// Differentiable models accumulate parameter gradients given the gradient of
// the loss with respect to the scores of the last Forward call.
type Differentiable interface {
	Model
	Backward(dScores *mat.Dense) error
	Parameters() []*Param
}

// Criterion computes the loss of the last scores and propagates it back.
type Criterion interface {
	Loss(scores *mat.Dense, labels []int) (float64, error)
	Backward() error
}

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	// ZeroGrad clears accumulated gradients.
	ZeroGrad()
	// Step applies one update.
	Step() error
}

// Param is a trainable matrix and its gradient, of equal shape.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, rows, cols int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}
