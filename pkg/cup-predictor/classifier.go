package cuppredictor

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/jhw/go-cup-predictor/internal/logger"
)

// Classifier is a multinomial logistic model over the fixed feature schema.
// PredictProba remaps its output by label value {2=winA, 1=draw, 0=winB}, so
// callers always receive [winA, draw, winB] regardless of training order.
type Classifier struct {
	params  *Params
	classes []int       // distinct label values seen in training, ascending
	weights [][]float64 // per class: bias + one weight per feature
	mean    []float64
	std     []float64
	fitted  bool
}

// ClassifierState is the serializable form of a fitted classifier.
type ClassifierState struct {
	FeatureNames []string    `json:"feature_names"`
	Classes      []int       `json:"classes"`
	Weights      [][]float64 `json:"weights"`
	Mean         []float64   `json:"mean"`
	Std          []float64   `json:"std"`
}

// NewClassifier creates an unfitted classifier.
func NewClassifier(params *Params) *Classifier {
	if params == nil {
		params = DefaultParams()
	}
	return &Classifier{params: params}
}

func newFittedClassifier(params *Params, state *ClassifierState) *Classifier {
	c := NewClassifier(params)
	c.classes = state.Classes
	c.weights = state.Weights
	c.mean = state.Mean
	c.std = state.Std
	c.fitted = true
	return c
}

// Fit trains the model with L2-regularized cross-entropy via LBFGS.
// Features are standardized; the scaler is stored with the model.
func (c *Classifier) Fit(ts *TrainingSet) error {
	if ts == nil || len(ts.X) == 0 {
		return fmt.Errorf("fitting classifier: %w", ErrNoTrainingData)
	}
	log := logger.WithComponent("classifier")

	n := len(ts.X)
	d := len(ts.X[0])

	c.mean, c.std = columnScaler(ts.X)
	scaled := make([][]float64, n)
	for i, row := range ts.X {
		scaled[i] = c.scale(row)
	}

	seen := make(map[int]bool)
	for _, y := range ts.Y {
		seen[y] = true
	}
	c.classes = make([]int, 0, len(seen))
	for y := range seen {
		c.classes = append(c.classes, y)
	}
	sort.Ints(c.classes)
	k := len(c.classes)

	classIdx := make(map[int]int, k)
	for i, y := range c.classes {
		classIdx[y] = i
	}

	dim := k * (d + 1) // per class: bias + feature weights
	l2 := c.params.ClassifierL2

	loss := func(x []float64) float64 {
		total := 0.0
		for i, row := range scaled {
			probs := softmaxScores(x, row, k, d)
			total -= math.Log(clampProb(probs[classIdx[ts.Y[i]]]))
		}
		total /= float64(n)
		for ci := 0; ci < k; ci++ {
			for j := 1; j <= d; j++ { // bias excluded from the penalty
				w := x[ci*(d+1)+j]
				total += l2 * w * w / float64(n)
			}
		}
		return total
	}

	grad := func(g, x []float64) {
		for i := range g {
			g[i] = 0
		}
		for i, row := range scaled {
			probs := softmaxScores(x, row, k, d)
			for ci := 0; ci < k; ci++ {
				delta := probs[ci]
				if ci == classIdx[ts.Y[i]] {
					delta -= 1
				}
				base := ci * (d + 1)
				g[base] += delta
				for j := 0; j < d; j++ {
					g[base+1+j] += delta * row[j]
				}
			}
		}
		for i := range g {
			g[i] /= float64(n)
		}
		for ci := 0; ci < k; ci++ {
			for j := 1; j <= d; j++ {
				g[ci*(d+1)+j] += 2 * l2 * x[ci*(d+1)+j] / float64(n)
			}
		}
	}

	x0 := make([]float64, dim)
	problem := optimize.Problem{Func: loss, Grad: grad}
	settings := &optimize.Settings{
		MajorIterations:   c.params.ClassifierMaxIter,
		GradientThreshold: c.params.Tolerance,
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})

	best := x0
	if result != nil && len(result.X) == dim {
		best = result.X
	}
	if err != nil {
		log.WithField("error", err.Error()).Warn("Classifier optimizer stopped early, keeping best-found weights")
	}

	c.weights = make([][]float64, k)
	for ci := 0; ci < k; ci++ {
		c.weights[ci] = append([]float64(nil), best[ci*(d+1):(ci+1)*(d+1)]...)
	}
	c.fitted = true

	log.WithFields(map[string]interface{}{
		"samples":  n,
		"features": d,
		"classes":  k,
	}).Info("Classifier fit complete")

	return nil
}

// softmaxScores evaluates class probabilities for one standardized row.
func softmaxScores(x, row []float64, k, d int) []float64 {
	scores := make([]float64, k)
	for ci := 0; ci < k; ci++ {
		base := ci * (d + 1)
		scores[ci] = x[base] + floats.Dot(x[base+1:base+1+d], row)
	}
	maxScore := floats.Max(scores)
	for ci := range scores {
		scores[ci] = math.Exp(scores[ci] - maxScore)
	}
	floats.Scale(1/floats.Sum(scores), scores)
	return scores
}

// PredictProba returns [pWinA, pDraw, pWinB] for one feature row.
func (c *Classifier) PredictProba(features []float64) ([3]float64, error) {
	if !c.fitted {
		return [3]float64{}, fmt.Errorf("classifier prediction: %w", ErrNotFitted)
	}

	row := c.scale(features)
	d := len(c.mean)
	k := len(c.classes)

	flat := make([]float64, k*(d+1))
	for ci := 0; ci < k; ci++ {
		copy(flat[ci*(d+1):], c.weights[ci])
	}
	probs := softmaxScores(flat, row, k, d)

	// Remap by label value: 2 -> winA, 1 -> draw, 0 -> winB.
	var out [3]float64
	for ci, label := range c.classes {
		switch label {
		case 2:
			out[0] = probs[ci]
		case 1:
			out[1] = probs[ci]
		case 0:
			out[2] = probs[ci]
		}
	}

	// A class absent from training keeps zero mass; renormalize the rest.
	total := out[0] + out[1] + out[2]
	if total > 0 {
		out[0] /= total
		out[1] /= total
		out[2] /= total
	}
	return out, nil
}

// State exposes the serializable model for bundling.
func (c *Classifier) State() (*ClassifierState, error) {
	if !c.fitted {
		return nil, fmt.Errorf("reading classifier state: %w", ErrNotFitted)
	}
	return &ClassifierState{
		FeatureNames: FeatureNames(),
		Classes:      append([]int(nil), c.classes...),
		Weights:      c.weights,
		Mean:         append([]float64(nil), c.mean...),
		Std:          append([]float64(nil), c.std...),
	}, nil
}

func (c *Classifier) scale(row []float64) []float64 {
	scaled := make([]float64, len(row))
	for j := range row {
		if j < len(c.mean) {
			scaled[j] = (row[j] - c.mean[j]) / c.std[j]
		}
	}
	return scaled
}

// columnScaler computes per-column mean and std; constant columns get std 1
// so scaling never divides by zero.
func columnScaler(x [][]float64) (mean, std []float64) {
	n := len(x)
	d := len(x[0])
	mean = make([]float64, d)
	std = make([]float64, d)

	for _, row := range x {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	for _, row := range x {
		for j, v := range row {
			diff := v - mean[j]
			std[j] += diff * diff
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / float64(n))
		if std[j] == 0 {
			std[j] = 1
		}
	}
	return mean, std
}
