package cuppredictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fixtureMatches returns a deterministic two-season history over four teams
// with a clear strength hierarchy: Arsenal > Bayern > Celtic > Dinamo.
func fixtureMatches() []MatchRecord {
	results := []struct {
		a, b           string
		scoreA, scoreB int
	}{
		{"Arsenal", "Bayern", 2, 1},
		{"Bayern", "Arsenal", 1, 1},
		{"Arsenal", "Celtic", 3, 0},
		{"Celtic", "Arsenal", 0, 1},
		{"Arsenal", "Dinamo", 2, 0},
		{"Dinamo", "Arsenal", 1, 2},
		{"Bayern", "Celtic", 2, 0},
		{"Celtic", "Bayern", 1, 1},
		{"Bayern", "Dinamo", 3, 1},
		{"Dinamo", "Bayern", 0, 2},
		{"Celtic", "Dinamo", 1, 0},
		{"Dinamo", "Celtic", 1, 1},
	}

	var matches []MatchRecord
	for season := 0; season < 2; season++ {
		for i, r := range results {
			date := time.Date(2023+season, time.Month(1+i%10), 7, 0, 0, 0, 0, time.UTC)
			matches = append(matches, MatchRecord{
				TeamA:  r.a,
				TeamB:  r.b,
				ScoreA: r.scoreA,
				ScoreB: r.scoreB,
				Date:   &date,
				Venue:  VenueHome,
			})
		}
	}
	return matches
}

func fittedRatingModel(t *testing.T) *RatingModel {
	t.Helper()
	model := NewRatingModel(nil)
	require.NoError(t, model.Fit(fixtureMatches()))
	return model
}

// uniformClassifier is a fitted classifier whose weights are all zero, so it
// predicts exactly [1/3, 1/3, 1/3] for any input. Useful for deterministic
// ensemble assertions.
func uniformClassifier() *Classifier {
	d := len(featureNames)
	state := &ClassifierState{
		FeatureNames: FeatureNames(),
		Classes:      []int{0, 1, 2},
		Weights:      [][]float64{make([]float64, d+1), make([]float64, d+1), make([]float64, d+1)},
		Mean:         make([]float64, d),
		Std:          onesVector(d),
	}
	return newFittedClassifier(DefaultParams(), state)
}

func onesVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

// ratingsOnlyEnsemble puts all blend weight on the rating model.
func ratingsOnlyEnsemble(t *testing.T) *Ensemble {
	t.Helper()
	params := DefaultParams()
	params.RatingWeight = 1.0
	params.ClassifierWeight = 0.0
	ensemble, err := NewEnsemble(fittedRatingModel(t), nil, params)
	require.NoError(t, err)
	return ensemble
}

func fixtureRatingTable() RatingTable {
	return RatingTable{
		"Arsenal": {Rating: 1900, RatingAverage: 1880, CareerMatches: 320, CareerWins: 190, CareerGoalsFor: 560},
		"Bayern":  {Rating: 1860, RatingAverage: 1850, CareerMatches: 310, CareerWins: 175, CareerGoalsFor: 530},
		"Celtic":  {Rating: 1790, RatingAverage: 1800, CareerMatches: 305, CareerWins: 150, CareerGoalsFor: 470},
		"Dinamo":  {Rating: 1740, RatingAverage: 1750, CareerMatches: 290, CareerWins: 130, CareerGoalsFor: 430},
	}
}

func fixtureSquadTable() SquadTable {
	return SquadTable{
		"Arsenal": {AvgRating: 7.4, AttackOutput: 1.9, DefenseOutput: 0.7, Goalkeeping: 7.0, MarketValueTotal: 450},
		"Bayern":  {AvgRating: 7.2, AttackOutput: 1.7, DefenseOutput: 0.9, Goalkeeping: 6.9, MarketValueTotal: 410},
		"Celtic":  {AvgRating: 6.8, AttackOutput: 1.3, DefenseOutput: 1.1, Goalkeeping: 6.5, MarketValueTotal: 260},
		"Dinamo":  {AvgRating: 6.5, AttackOutput: 1.1, DefenseOutput: 1.3, Goalkeeping: 6.3, MarketValueTotal: 180},
	}
}
