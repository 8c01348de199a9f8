package cuppredictor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// The harness operates on prediction triples in [winA, draw, winB] order and
// outcomes coded {2=winA, 1=draw, 0=winB}.

// logLossEps keeps realized-class probabilities away from {0, 1}.
const logLossEps = 1e-15

// flatDrawPrior is the draw probability of the ratings-only baseline.
const flatDrawPrior = 0.26

// BrierScore is the mean squared error against the one-hot realized outcome,
// summed over the three classes and averaged over matches. 0 is perfect.
func BrierScore(preds [][3]float64, outcomes []int) float64 {
	n := pairCount(preds, outcomes)
	if n == 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < n; i++ {
		realized := outcomeIndex(outcomes[i])
		for c := 0; c < 3; c++ {
			target := 0.0
			if c == realized {
				target = 1.0
			}
			diff := preds[i][c] - target
			total += diff * diff
		}
	}
	return total / float64(n)
}

// LogLoss is the mean negative log probability of the realized class.
func LogLoss(preds [][3]float64, outcomes []int) float64 {
	n := pairCount(preds, outcomes)
	if n == 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < n; i++ {
		p := preds[i][outcomeIndex(outcomes[i])]
		if p < logLossEps {
			p = logLossEps
		}
		if p > 1-logLossEps {
			p = 1 - logLossEps
		}
		total -= math.Log(p)
	}
	return total / float64(n)
}

// Accuracy is the fraction of matches where the arg-max class was realized.
func Accuracy(preds [][3]float64, outcomes []int) float64 {
	n := pairCount(preds, outcomes)
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < 3; c++ {
			if preds[i][c] > preds[i][best] {
				best = c
			}
		}
		if best == outcomeIndex(outcomes[i]) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// RankedProbabilityScore treats the classes as ordinal (winB < draw < winA)
// and averages the squared cumulative error over the two non-trivial bins.
func RankedProbabilityScore(preds [][3]float64, outcomes []int) float64 {
	n := pairCount(preds, outcomes)
	if n == 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < n; i++ {
		// Reorder into ascending ordinal order: [winB, draw, winA].
		ordered := [3]float64{preds[i][2], preds[i][1], preds[i][0]}
		realized := 2 - outcomeIndex(outcomes[i])

		cumPred := 0.0
		cumObs := 0.0
		score := 0.0
		for c := 0; c < 2; c++ { // last cumulative bin is always 1
			cumPred += ordered[c]
			if c >= realized {
				cumObs = 1
			}
			diff := cumPred - cumObs
			score += diff * diff
		}
		total += score / 2
	}
	return total / float64(n)
}

// CalibrationBucket is one equal-width probability bucket for one class.
type CalibrationBucket struct {
	Class         int     `json:"class"` // index into [winA, draw, winB]
	Low           float64 `json:"low"`
	High          float64 `json:"high"`
	MeanPredicted float64 `json:"mean_predicted"`
	ObservedFreq  float64 `json:"observed_freq"`
	Count         int     `json:"count"`
}

// CalibrationCurve buckets predicted probabilities per class independently
// and compares mean prediction to observed frequency. Empty buckets are
// omitted. numBuckets <= 0 defaults to 10.
func CalibrationCurve(preds [][3]float64, outcomes []int, numBuckets int) []CalibrationBucket {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	n := pairCount(preds, outcomes)
	if n == 0 {
		return nil
	}

	var curve []CalibrationBucket
	width := 1.0 / float64(numBuckets)

	for class := 0; class < 3; class++ {
		predicted := make([][]float64, numBuckets)
		observed := make([][]float64, numBuckets)

		for i := 0; i < n; i++ {
			p := preds[i][class]
			bucket := int(p / width)
			if bucket >= numBuckets {
				bucket = numBuckets - 1
			}
			hit := 0.0
			if outcomeIndex(outcomes[i]) == class {
				hit = 1.0
			}
			predicted[bucket] = append(predicted[bucket], p)
			observed[bucket] = append(observed[bucket], hit)
		}

		for bucket := 0; bucket < numBuckets; bucket++ {
			if len(predicted[bucket]) == 0 {
				continue
			}
			curve = append(curve, CalibrationBucket{
				Class:         class,
				Low:           float64(bucket) * width,
				High:          float64(bucket+1) * width,
				MeanPredicted: stat.Mean(predicted[bucket], nil),
				ObservedFreq:  stat.Mean(observed[bucket], nil),
				Count:         len(predicted[bucket]),
			})
		}
	}
	return curve
}

// MetricsBundle groups the scalar proper-scoring metrics for one model.
type MetricsBundle struct {
	N        int     `json:"n"`
	Brier    float64 `json:"brier"`
	LogLoss  float64 `json:"log_loss"`
	Accuracy float64 `json:"accuracy"`
	RPS      float64 `json:"rps"`
}

// Evaluate computes every scalar metric over one prediction set.
func Evaluate(preds [][3]float64, outcomes []int) MetricsBundle {
	return MetricsBundle{
		N:        pairCount(preds, outcomes),
		Brier:    BrierScore(preds, outcomes),
		LogLoss:  LogLoss(preds, outcomes),
		Accuracy: Accuracy(preds, outcomes),
		RPS:      RankedProbabilityScore(preds, outcomes),
	}
}

// BacktestReport compares the ensemble against reference baselines on one
// historical tournament.
type BacktestReport struct {
	Ensemble    MetricsBundle       `json:"ensemble"`
	Uniform     MetricsBundle       `json:"uniform"`
	RatingsOnly MetricsBundle       `json:"ratings_only"`
	Calibration []CalibrationBucket `json:"calibration"`
}

// BacktestTournament scores a combiner (trained strictly on pre-tournament
// data) against actual results, alongside a uniform baseline and a
// ratings-only baseline: a logistic of the rating difference with a flat
// draw prior.
func BacktestTournament(ensemble *Ensemble, matches []ValidationMatch, ratings RatingTable, squads SquadTable, calibrationBuckets int) (*BacktestReport, error) {
	if len(matches) == 0 {
		return nil, fmt.Errorf("backtesting tournament: %w", ErrNoTrainingData)
	}

	preds := make([][3]float64, 0, len(matches))
	uniform := make([][3]float64, 0, len(matches))
	ratingsOnly := make([][3]float64, 0, len(matches))
	outcomes := make([]int, 0, len(matches))

	for _, match := range matches {
		prediction, err := ensemble.Predict(match.TeamA, match.TeamB, ratings, squads, match.Context)
		if err != nil {
			return nil, fmt.Errorf("backtesting tournament: %w", err)
		}
		preds = append(preds, [3]float64{prediction.PWinA, prediction.PDraw, prediction.PWinB})
		uniform = append(uniform, [3]float64{1.0 / 3, 1.0 / 3, 1.0 / 3})
		ratingsOnly = append(ratingsOnly, ratingsBaseline(match.TeamA, match.TeamB, ratings))
		outcomes = append(outcomes, match.Outcome)
	}

	return &BacktestReport{
		Ensemble:    Evaluate(preds, outcomes),
		Uniform:     Evaluate(uniform, outcomes),
		RatingsOnly: Evaluate(ratingsOnly, outcomes),
		Calibration: CalibrationCurve(preds, outcomes, calibrationBuckets),
	}, nil
}

// ratingsBaseline converts a rating difference into a probability triple via
// the classic 400-point logistic curve, with a flat draw prior.
func ratingsBaseline(teamA, teamB string, ratings RatingTable) [3]float64 {
	ra := ratings.resolve(teamA)
	rb := ratings.resolve(teamB)
	pWinA := (1 - flatDrawPrior) * eloExpectation(ra.Rating-rb.Rating)
	return [3]float64{pWinA, flatDrawPrior, 1 - flatDrawPrior - pWinA}
}

func pairCount(preds [][3]float64, outcomes []int) int {
	n := len(preds)
	if len(outcomes) < n {
		n = len(outcomes)
	}
	return n
}
