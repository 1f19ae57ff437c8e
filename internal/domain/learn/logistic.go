package learn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	defaultLogisticC     = 0.8
	defaultLogisticIters = 200
)

// Logistic is an L2-regularised logistic regression fitted with L-BFGS.
type Logistic struct {
	calibrated
	C        float64
	Balanced bool
	MaxIter  int

	coef      []float64
	intercept float64
}

// NewLogistic returns a balanced logistic regression with C = 0.8.
func NewLogistic() *Logistic {
	return &Logistic{C: defaultLogisticC, Balanced: true, MaxIter: defaultLogisticIters}
}

func (m *Logistic) Name() string { return NameLogistic }

// Fit minimises weighted log-loss plus ||w||^2 / (2C). The intercept is not
// penalised.
func (m *Logistic) Fit(X [][]float64, y []int) error {
	if len(X) != len(y) {
		return fmt.Errorf("logistic: %w", ErrShape)
	}
	if len(X) == 0 {
		return fmt.Errorf("logistic: %w", ErrEmpty)
	}
	dim := len(X[0])
	w := uniformWeights(len(y))
	if m.Balanced {
		w = balancedWeights(y)
	}
	penalty := 1 / (2 * m.C)
	z := make([]float64, len(X))

	margins := func(params []float64) {
		beta, b0 := params[:dim], params[dim]
		for i, row := range X {
			z[i] = floats.Dot(beta, row) + b0
		}
	}
	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			margins(params)
			var loss float64
			for i := range X {
				// log(1+exp(-s*z)) computed without overflow
				s := -z[i]
				if y[i] == 1 {
					s = z[i]
				}
				loss += w[i] * softplus(-s)
			}
			beta := params[:dim]
			return loss + penalty*floats.Dot(beta, beta)
		},
		Grad: func(grad, params []float64) {
			margins(params)
			for j := range grad {
				grad[j] = 0
			}
			for i, row := range X {
				r := w[i] * (sigmoid(z[i]) - float64(y[i]))
				floats.AddScaled(grad[:dim], r, row)
				grad[dim] += r
			}
			floats.AddScaled(grad[:dim], 2*penalty, params[:dim])
		},
	}

	init := make([]float64, dim+1)
	init[dim] = logit(baseRate(y))
	settings := &optimize.Settings{
		MajorIterations:   m.MaxIter,
		GradientThreshold: 1e-6,
	}
	res, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if res == nil {
		return fmt.Errorf("logistic: %w", err)
	}
	// an iteration limit still leaves a usable solution
	m.coef = append([]float64(nil), res.X[:dim]...)
	m.intercept = res.X[dim]
	if math.IsNaN(m.intercept) {
		return fmt.Errorf("logistic: diverged")
	}
	return nil
}

func (m *Logistic) raw(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		if m.coef == nil {
			out[i] = 0.5
			continue
		}
		out[i] = sigmoid(floats.Dot(m.coef, row) + m.intercept)
	}
	return out
}

func (m *Logistic) Predict(X [][]float64) []float64 {
	return m.apply(m.raw(X))
}

func (m *Logistic) Calibrate(X [][]float64, y []int) error {
	return m.fit(m.raw(X), y)
}

func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}
