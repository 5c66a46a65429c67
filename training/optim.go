package training

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// SGD is plain stochastic gradient descent.
type SGD struct {
	Params       []*Param
	LearningRate float64
	// ClipNorm > 0 rescales each gradient whose L2 norm exceeds it.
	ClipNorm float64
}

var _ Optimizer = (*SGD)(nil)

// ZeroGrad implements Optimizer.
func (o *SGD) ZeroGrad() { zeroGrads(o.Params) }

// Step implements Optimizer.
func (o *SGD) Step() error {
	for _, p := range o.Params {
		g := p.Grad.RawMatrix().Data
		clip(g, o.ClipNorm)
		floats.AddScaled(p.Value.RawMatrix().Data, -o.LearningRate, g)
	}
	return checkFinite(o.Params)
}

// Adam implements the Adam optimizer (Kingma & Ba, 2015).
type Adam struct {
	Params       []*Param
	LearningRate float64
	Beta1, Beta2 float64
	Epsilon      float64
	ClipNorm     float64

	t    int
	m, v [][]float64
}

var _ Optimizer = (*Adam)(nil)

// NewAdam returns an Adam optimizer over params with the usual defaults for
// zero hyperparameters.
func NewAdam(params []*Param, lr, beta1, beta2, eps float64) *Adam {
	if lr == 0 {
		lr = 1e-3
	}
	if beta1 == 0 {
		beta1 = 0.9
	}
	if beta2 == 0 {
		beta2 = 0.999
	}
	if eps == 0 {
		eps = 1e-8
	}
	o := &Adam{Params: params, LearningRate: lr, Beta1: beta1, Beta2: beta2, Epsilon: eps}
	o.m = make([][]float64, len(params))
	o.v = make([][]float64, len(params))
	for i, p := range params {
		n := len(p.Value.RawMatrix().Data)
		o.m[i] = make([]float64, n)
		o.v[i] = make([]float64, n)
	}
	return o
}

// ZeroGrad implements Optimizer.
func (o *Adam) ZeroGrad() { zeroGrads(o.Params) }

// Step implements Optimizer.
func (o *Adam) Step() error {
	o.t++
	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for i, p := range o.Params {
		g := p.Grad.RawMatrix().Data
		clip(g, o.ClipNorm)
		w := p.Value.RawMatrix().Data
		m, v := o.m[i], o.v[i]
		for j := range w {
			m[j] = o.Beta1*m[j] + (1-o.Beta1)*g[j]
			v[j] = o.Beta2*v[j] + (1-o.Beta2)*g[j]*g[j]
			w[j] -= o.LearningRate * (m[j] / c1) / (math.Sqrt(v[j]/c2) + o.Epsilon)
		}
	}
	return checkFinite(o.Params)
}

// NewOptimizer builds the optimizer named in cfg ("adam" or "sgd").
func NewOptimizer(cfg Config, params []*Param) (Optimizer, error) {
	switch strings.ToLower(cfg.Optimizer) {
	case "", "adam":
		o := NewAdam(params, cfg.LearningRate, cfg.Beta1, cfg.Beta2, cfg.Epsilon)
		o.ClipNorm = cfg.ClipNorm
		return o, nil
	case "sgd":
		return &SGD{Params: params, LearningRate: cfg.LearningRate, ClipNorm: cfg.ClipNorm}, nil
	}
	return nil, errors.Errorf("unknown optimizer %q, available: adam, sgd", cfg.Optimizer)
}

func zeroGrads(params []*Param) {
	for _, p := range params {
		p.Grad.Zero()
	}
}

func clip(g []float64, maxNorm float64) {
	if maxNorm <= 0 {
		return
	}
	if n := floats.Norm(g, 2); n > maxNorm {
		floats.Scale(maxNorm/n, g)
	}
}

func checkFinite(params []*Param) error {
	for _, p := range params {
		for _, x := range p.Value.RawMatrix().Data {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return errors.Errorf("parameter %s is not finite after update", p.Name)
			}
		}
	}
	return nil
}
