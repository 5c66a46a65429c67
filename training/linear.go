package training

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LinearNet is a small sentence classifier: it averages the embeddings of
// the real tokens of each sentence, applies a hidden ReLU layer and a linear
// output layer producing one score per class.
type LinearNet struct {
	embedDim, hiddenDim, numClasses int

	w1, b1, w2, b2 *Param

	// cached by Forward for Backward
	pooled *mat.Dense
	preAct *mat.Dense
	hidden *mat.Dense
}

var _ Differentiable = (*LinearNet)(nil)

// NewLinearNet creates a LinearNet with Xavier/Glorot uniform weights drawn
// from rng and zero biases.
func NewLinearNet(embedDim, hiddenDim, numClasses int, rng *rand.Rand) (*LinearNet, error) {
	if embedDim <= 0 || hiddenDim <= 0 || numClasses <= 0 {
		return nil, errors.Errorf("invalid LinearNet sizes: embed=%d hidden=%d classes=%d",
			embedDim, hiddenDim, numClasses)
	}
	n := &LinearNet{
		embedDim:   embedDim,
		hiddenDim:  hiddenDim,
		numClasses: numClasses,
		w1:         newParam("hidden.weight", hiddenDim, embedDim),
		b1:         newParam("hidden.bias", 1, hiddenDim),
		w2:         newParam("output.weight", numClasses, hiddenDim),
		b2:         newParam("output.bias", 1, numClasses),
	}
	xavier(n.w1.Value, rng)
	xavier(n.w2.Value, rng)
	return n, nil
}

func xavier(w *mat.Dense, rng *rand.Rand) {
	out, in := w.Dims()
	limit := math.Sqrt(6.0 / float64(in+out))
	data := w.RawMatrix().Data
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
}

// Parameters implements Differentiable.
func (n *LinearNet) Parameters() []*Param {
	return []*Param{n.w1, n.b1, n.w2, n.b2}
}

// Forward implements Model.
func (n *LinearNet) Forward(sentences []*mat.Dense, lengths []int) (*mat.Dense, error) {
	if len(sentences) == 0 {
		return nil, errors.New("empty batch")
	}
	if len(sentences) != len(lengths) {
		return nil, errors.Errorf("%d sentences but %d lengths", len(sentences), len(lengths))
	}

	pooled := mat.NewDense(len(sentences), n.embedDim, nil)
	for i, s := range sentences {
		rows, cols := s.Dims()
		if cols != n.embedDim {
			return nil, errors.Errorf("sentence %d has embedding size %d, expected %d", i, cols, n.embedDim)
		}
		if lengths[i] < 0 || lengths[i] > rows {
			return nil, errors.Errorf("sentence %d: length %d outside [0, %d]", i, lengths[i], rows)
		}
		if lengths[i] == 0 {
			continue
		}
		dst := pooled.RawRowView(i)
		for t := 0; t < lengths[i]; t++ {
			floats.Add(dst, s.RawRowView(t))
		}
		floats.Scale(1/float64(lengths[i]), dst)
	}

	preAct := affine(pooled, n.w1, n.b1)
	hidden := mat.DenseCopyOf(preAct)
	activationReLU(hidden.RawMatrix().Data)
	scores := affine(hidden, n.w2, n.b2)

	n.pooled, n.preAct, n.hidden = pooled, preAct, hidden
	return scores, nil
}

// affine returns x·wᵀ + b, with b broadcast over rows.
func affine(x *mat.Dense, w, b *Param) *mat.Dense {
	rows, _ := x.Dims()
	out, _ := w.Value.Dims()
	y := mat.NewDense(rows, out, nil)
	y.Mul(x, w.Value.T())
	bias := b.Value.RawRowView(0)
	for i := 0; i < rows; i++ {
		floats.Add(y.RawRowView(i), bias)
	}
	return y
}

// activationReLU applies ReLU in-place over the slice.
func activationReLU(x []float64) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

// Backward implements Differentiable. Gradients are added to the existing
// ones; clearing them is the optimizer's job.
func (n *LinearNet) Backward(dScores *mat.Dense) error {
	if n.hidden == nil {
		return errors.New("Backward called before Forward")
	}
	rows, cols := dScores.Dims()
	if hr, _ := n.hidden.Dims(); rows != hr || cols != n.numClasses {
		return errors.Errorf("score gradient is %dx%d, expected %dx%d", rows, cols, hr, n.numClasses)
	}
	dScores = mat.DenseCopyOf(dScores)

	accumulate(n.w2, n.b2, dScores, n.hidden)

	dHidden := mat.NewDense(rows, n.hiddenDim, nil)
	dHidden.Mul(dScores, n.w2.Value)
	dh := dHidden.RawMatrix().Data
	pre := n.preAct.RawMatrix().Data
	for i := range dh {
		if pre[i] <= 0 {
			dh[i] = 0
		}
	}

	accumulate(n.w1, n.b1, dHidden, n.pooled)
	return nil
}

// accumulate adds dyᵀ·x to w.Grad and the column sums of dy to b.Grad.
func accumulate(w, b *Param, dy, x *mat.Dense) {
	var dw mat.Dense
	dw.Mul(dy.T(), x)
	w.Grad.Add(w.Grad, &dw)
	rows, _ := dy.Dims()
	bias := b.Grad.RawRowView(0)
	for i := 0; i < rows; i++ {
		floats.Add(bias, dy.RawRowView(i))
	}
}
