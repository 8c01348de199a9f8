package cuppredictor

// ScoreMatrix is the outer product of two Poisson marginals with the
// Dixon-Coles low-score correction applied and the whole grid renormalized
// to sum exactly 1 (the correction is not mass-preserving and the bound
// truncates the tails).
type ScoreMatrix struct {
	Bound  int         // maximum goals per side
	Matrix [][]float64 // [goalsA][goalsB] -> probability
}

// NewScoreMatrix builds the corrected, renormalized scoreline grid.
func NewScoreMatrix(lambdaA, lambdaB, rho float64, bound int) *ScoreMatrix {
	matrix := make([][]float64, bound+1)
	for i := range matrix {
		matrix[i] = make([]float64, bound+1)
	}

	total := 0.0
	for goalsA := 0; goalsA <= bound; goalsA++ {
		for goalsB := 0; goalsB <= bound; goalsB++ {
			p := PoissonProb(lambdaA, goalsA) * PoissonProb(lambdaB, goalsB)
			p *= DixonColesAdjustment(goalsA, goalsB, rho)
			if p < 0 {
				p = 0
			}
			matrix[goalsA][goalsB] = p
			total += p
		}
	}

	if total > 0 {
		for goalsA := 0; goalsA <= bound; goalsA++ {
			for goalsB := 0; goalsB <= bound; goalsB++ {
				matrix[goalsA][goalsB] /= total
			}
		}
	}

	return &ScoreMatrix{
		Bound:  bound,
		Matrix: matrix,
	}
}

// DixonColesAdjustment redistributes probability among the four low-scoring
// outcomes, correcting the independent-Poisson bias on low scores.
func DixonColesAdjustment(goalsA, goalsB int, rho float64) float64 {
	rho = clampRho(rho)
	switch {
	case goalsA == 0 && goalsB == 0:
		return 1 - rho
	case goalsA == 1 && goalsB == 0:
		return 1 + rho
	case goalsA == 0 && goalsB == 1:
		return 1 + rho
	case goalsA == 1 && goalsB == 1:
		return 1 - rho
	default:
		return 1.0
	}
}

// Outcome reduces the matrix to [winA, draw, winB].
func (m *ScoreMatrix) Outcome() [3]float64 {
	var winA, draw, winB float64

	for goalsA := 0; goalsA <= m.Bound; goalsA++ {
		for goalsB := 0; goalsB <= m.Bound; goalsB++ {
			prob := m.Matrix[goalsA][goalsB]

			if goalsA > goalsB {
				winA += prob
			} else if goalsA == goalsB {
				draw += prob
			} else {
				winB += prob
			}
		}
	}

	return [3]float64{winA, draw, winB}
}

// CorrectScore returns the probability of a specific scoreline.
func (m *ScoreMatrix) CorrectScore(goalsA, goalsB int) float64 {
	if goalsA < 0 || goalsB < 0 || goalsA > m.Bound || goalsB > m.Bound {
		return 0.0
	}
	return m.Matrix[goalsA][goalsB]
}

// OverUnder returns the probability of total goals over/under a threshold.
func (m *ScoreMatrix) OverUnder(threshold int) (over, under float64) {
	for goalsA := 0; goalsA <= m.Bound; goalsA++ {
		for goalsB := 0; goalsB <= m.Bound; goalsB++ {
			prob := m.Matrix[goalsA][goalsB]

			if goalsA+goalsB > threshold {
				over += prob
			} else {
				under += prob
			}
		}
	}

	return over, under
}

// BothTeamsToScore returns the probability of both sides scoring vs not.
func (m *ScoreMatrix) BothTeamsToScore() (both, notBoth float64) {
	for goalsA := 0; goalsA <= m.Bound; goalsA++ {
		for goalsB := 0; goalsB <= m.Bound; goalsB++ {
			prob := m.Matrix[goalsA][goalsB]

			if goalsA > 0 && goalsB > 0 {
				both += prob
			} else {
				notBoth += prob
			}
		}
	}

	return both, notBoth
}

// ExpectedGoals returns expected goals for each side under the grid.
func (m *ScoreMatrix) ExpectedGoals() (expectedA, expectedB float64) {
	for goalsA := 0; goalsA <= m.Bound; goalsA++ {
		for goalsB := 0; goalsB <= m.Bound; goalsB++ {
			prob := m.Matrix[goalsA][goalsB]
			expectedA += float64(goalsA) * prob
			expectedB += float64(goalsB) * prob
		}
	}

	return expectedA, expectedB
}

// TotalProbability sums the grid; 1.0 up to floating point after renormalization.
func (m *ScoreMatrix) TotalProbability() float64 {
	total := 0.0
	for goalsA := 0; goalsA <= m.Bound; goalsA++ {
		for goalsB := 0; goalsB <= m.Bound; goalsB++ {
			total += m.Matrix[goalsA][goalsB]
		}
	}
	return total
}
