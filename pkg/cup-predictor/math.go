package cuppredictor

import (
	"math"
	"math/rand"
)

// probFloor keeps probabilities away from zero before any log.
const probFloor = 1e-10

// PoissonProb calculates P(X = k) where X ~ Poisson(lambda).
func PoissonProb(lambda float64, k int) float64 {
	if k < 0 {
		return 0
	}
	if lambda <= 0 {
		if k == 0 {
			return 1.0
		}
		return 0
	}

	// Log space for numerical stability
	logProb := logPoissonProb(lambda, k)
	return math.Exp(logProb)
}

// logPoissonProb is the log-space Poisson pmf used inside the likelihood.
func logPoissonProb(lambda float64, k int) float64 {
	lg, _ := math.Lgamma(float64(k) + 1)
	return float64(k)*math.Log(lambda) - lambda - lg
}

// PoissonSample draws one value from Poisson(lambda) using the given source.
func PoissonSample(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}

	// Inverse transform sampling for small lambda
	if lambda < 12 {
		limit := math.Exp(-lambda)
		k := 0
		p := 1.0

		for p > limit {
			k++
			p *= rng.Float64()
		}
		return k - 1
	}

	// Normal approximation for large lambda
	return int(math.Max(0, rng.NormFloat64()*math.Sqrt(lambda)+lambda+0.5))
}

// clampProb floors a probability before it reaches a log.
func clampProb(p float64) float64 {
	if p < probFloor {
		return probFloor
	}
	return p
}

// clampRho keeps the low-score correction well inside the range where every
// adjusted cell stays positive.
func clampRho(rho float64) float64 {
	const bound = 0.5
	if rho > bound {
		return bound
	}
	if rho < -bound {
		return -bound
	}
	return rho
}

// eloExpectation maps a rating difference to a win expectation on the
// classic 400-point logistic scale.
func eloExpectation(diff float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, -diff/400))
}
