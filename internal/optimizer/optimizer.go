// Package optimizer fits scoring component weights to observed conversion
// outcomes.
package optimizer

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// MinObservations is the fewest scored outcomes the fit accepts.
const MinObservations = 10

var (
	// ErrInsufficientData reports too few observations to fit weights.
	ErrInsufficientData = eris.New("optimizer: insufficient observations")

	// ErrNonConvergence reports the iteration cap was reached before the
	// weight change dropped below tolerance.
	ErrNonConvergence = eris.New("optimizer: did not converge")
)

// Observation pairs one lead's component scores with its outcome.
type Observation struct {
	Components map[string]float64
	Converted  bool
}

// Config bounds the fit.
type Config struct {
	Lambda    float64 // L2 penalty strength
	MaxIters  int
	Tolerance float64 // sup-norm weight change that counts as converged
}

func DefaultConfig() Config {
	return Config{Lambda: 0.01, MaxIters: 500, Tolerance: 1e-6}
}

// Fit estimates component weights from scored outcomes by minimizing
// regularized logistic loss, constrained so every weight stays within
// [model.WeightMin, model.WeightMax] and the weights sum to
// model.WeightTargetSum. The descent is single-threaded with a fixed
// starting point and a fixed step, so identical input always produces
// identical weights.
func Fit(obs []Observation, cfg Config) (map[string]float64, error) {
	n := len(obs)
	if n < MinObservations {
		return nil, eris.Wrapf(ErrInsufficientData, "have %d observations, need %d", n, MinObservations)
	}

	d := len(model.ScoreComponents)
	X := mat.NewDense(n, d, nil)
	y := make([]float64, n)
	for i, o := range obs {
		for j, name := range model.ScoreComponents {
			X.Set(i, j, o.Components[name])
		}
		if o.Converted {
			y[i] = 1
		}
	}

	w := make([]float64, d)
	defaults := model.DefaultWeights()
	for j, name := range model.ScoreComponents {
		w[j] = defaults[name]
	}

	// Fixed step 1/L. L bounds the loss gradient's Lipschitz constant,
	// which keeps the step stable for any data scale.
	maxSq := 0.0
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		if sq := floats.Dot(row, row); sq > maxSq {
			maxSq = sq
		}
	}
	lip := 0.25*maxSq + 2*cfg.Lambda
	if lip <= 0 {
		// Zero features and no penalty: nothing to descend on.
		return weightsByName(w), nil
	}
	step := 1 / lip

	pred := make([]float64, n)
	resid := make([]float64, n)
	grad := make([]float64, d)
	next := make([]float64, d)

	wVec := mat.NewVecDense(d, w)
	predVec := mat.NewVecDense(n, pred)
	residVec := mat.NewVecDense(n, resid)
	gradVec := mat.NewVecDense(d, grad)

	for iter := 0; iter < cfg.MaxIters; iter++ {
		predVec.MulVec(X, wVec)
		for i := 0; i < n; i++ {
			resid[i] = sigmoid(pred[i]) - y[i]
		}
		gradVec.MulVec(X.T(), residVec)
		floats.Scale(1/float64(n), grad)
		floats.AddScaled(grad, 2*cfg.Lambda, w)

		copy(next, w)
		floats.AddScaled(next, -step, grad)
		projected, err := projectCappedSimplex(next, model.WeightMin, model.WeightMax, model.WeightTargetSum)
		if err != nil {
			return nil, err
		}

		done := floats.Distance(projected, w, math.Inf(1)) < cfg.Tolerance
		copy(w, projected)
		if done {
			return weightsByName(w), nil
		}
	}

	return nil, eris.Wrapf(ErrNonConvergence, "after %d iterations", cfg.MaxIters)
}

func weightsByName(w []float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for j, name := range model.ScoreComponents {
		out[name] = w[j]
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
