package cuppredictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingModelFitNormalizesAttack(t *testing.T) {
	model := fittedRatingModel(t)

	params, err := model.RatingParams()
	require.NoError(t, err)

	mean := 0.0
	for _, attack := range params.Attack {
		mean += attack
	}
	mean /= float64(len(params.Attack))
	assert.InDelta(t, 1.0, mean, 1e-9)

	assert.Len(t, params.Attack, 4)
	assert.Len(t, params.Defense, 4)
	assert.LessOrEqual(t, params.Rho, 0.5)
	assert.GreaterOrEqual(t, params.Rho, -0.5)
}

func TestRatingModelPredictOutcomeIsValidTriple(t *testing.T) {
	model := fittedRatingModel(t)

	forecast, err := model.PredictOutcome("Arsenal", "Dinamo", true)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, forecast.PWinA+forecast.PDraw+forecast.PWinB, 1e-9)
	assert.Greater(t, forecast.PWinA, forecast.PWinB)
}

func TestRatingModelNeutralSymmetry(t *testing.T) {
	model := fittedRatingModel(t)

	ab, err := model.PredictOutcome("Arsenal", "Celtic", true)
	require.NoError(t, err)
	ba, err := model.PredictOutcome("Celtic", "Arsenal", true)
	require.NoError(t, err)

	assert.InDelta(t, ab.PWinA, ba.PWinB, 1e-9)
	assert.InDelta(t, ab.PWinB, ba.PWinA, 1e-9)
	assert.InDelta(t, ab.PDraw, ba.PDraw, 1e-9)
}

func TestRatingModelHomeAdvantageRaisesHostLambda(t *testing.T) {
	model := fittedRatingModel(t)

	home, err := model.PredictOutcome("Celtic", "Bayern", false)
	require.NoError(t, err)
	neutral, err := model.PredictOutcome("Celtic", "Bayern", true)
	require.NoError(t, err)

	assert.Greater(t, home.LambdaA, neutral.LambdaA)
	assert.InDelta(t, home.LambdaB, neutral.LambdaB, 1e-12)
}

func TestRatingModelUnknownTeamDefaults(t *testing.T) {
	model := fittedRatingModel(t)

	forecast, err := model.PredictOutcome("Arsenal", "Zenit", true)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, forecast.PWinA+forecast.PDraw+forecast.PWinB, 1e-9)
	// Arsenal is well above average; an unrated side gets mean strength.
	assert.Greater(t, forecast.PWinA, forecast.PWinB)
}

func TestRatingModelThreeMatchScenario(t *testing.T) {
	date := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	matches := []MatchRecord{
		{TeamA: "Alpha", TeamB: "Beta", ScoreA: 2, ScoreB: 0, Date: &date, Venue: VenueHome},
		{TeamA: "Beta", TeamB: "Gamma", ScoreA: 1, ScoreB: 0, Date: &date, Venue: VenueHome},
		{TeamA: "Alpha", TeamB: "Gamma", ScoreA: 1, ScoreB: 1, Date: &date, Venue: VenueNeutral},
	}

	model := NewRatingModel(nil)
	require.NoError(t, model.Fit(matches))

	forecast, err := model.PredictOutcome("Alpha", "Gamma", true)
	require.NoError(t, err)
	assert.Greater(t, forecast.PWinA, forecast.PWinB)
}

func TestRatingModelDropsMalformedRows(t *testing.T) {
	matches := append(fixtureMatches(),
		MatchRecord{TeamA: "", TeamB: "Bayern", ScoreA: 1, ScoreB: 0},
		MatchRecord{TeamA: "Arsenal", TeamB: "Arsenal", ScoreA: 1, ScoreB: 1},
		MatchRecord{TeamA: "Arsenal", TeamB: "Bayern", ScoreA: -1, ScoreB: 2},
	)

	model := NewRatingModel(nil)
	require.NoError(t, model.Fit(matches))
	assert.Equal(t, 3, model.DroppedRows())

	// A re-fit starts the count over rather than accumulating across fits.
	require.NoError(t, model.Fit(matches))
	assert.Equal(t, 3, model.DroppedRows())

	require.NoError(t, model.Fit(fixtureMatches()))
	assert.Equal(t, 0, model.DroppedRows())
}

func TestRatingModelNoUsableRows(t *testing.T) {
	model := NewRatingModel(nil)
	err := model.Fit([]MatchRecord{
		{TeamA: "", TeamB: "Bayern", ScoreA: 1, ScoreB: 0},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTrainingData)
}

func TestRatingModelPredictBeforeFit(t *testing.T) {
	model := NewRatingModel(nil)
	_, err := model.PredictOutcome("Arsenal", "Bayern", true)
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = model.TeamStrengths()
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestTeamStrengthsOrderedAndIdempotent(t *testing.T) {
	model := fittedRatingModel(t)

	first, err := model.TeamStrengths()
	require.NoError(t, err)
	second, err := model.TeamStrengths()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 4)
	assert.Equal(t, "Arsenal", first[0].Name)
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].Overall, first[i].Overall)
	}
}

func TestRecencyWeights(t *testing.T) {
	older := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	matches := []MatchRecord{
		{TeamA: "A", TeamB: "B", Date: &older},
		{TeamA: "A", TeamB: "B", Date: &newer},
		{TeamA: "A", TeamB: "B"},
	}

	weights := recencyWeights(matches, 0.5)
	assert.Less(t, weights[0], weights[1])
	assert.Equal(t, 1.0, weights[1])
	assert.Equal(t, 1.0, weights[2]) // undated rows get full weight

	// With no dates at all, everything weighs 1.0.
	undated := []MatchRecord{{TeamA: "A", TeamB: "B"}, {TeamA: "B", TeamB: "A"}}
	for _, w := range recencyWeights(undated, 0.5) {
		assert.Equal(t, 1.0, w)
	}
}
