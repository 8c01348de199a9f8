package cuppredictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnsembleRejectsBadWeights(t *testing.T) {
	params := DefaultParams()
	params.RatingWeight = 0.8
	params.ClassifierWeight = 0.3

	_, err := NewEnsemble(fittedRatingModel(t), uniformClassifier(), params)
	assert.Error(t, err)
}

func TestNewEnsembleRequiresClassifierForItsWeight(t *testing.T) {
	_, err := NewEnsemble(fittedRatingModel(t), nil, DefaultParams())
	assert.Error(t, err)
}

func TestEnsemblePredictBlends(t *testing.T) {
	model := fittedRatingModel(t)
	params := DefaultParams()
	ensemble, err := NewEnsemble(model, uniformClassifier(), params)
	require.NoError(t, err)

	pred, err := ensemble.Predict("Arsenal", "Dinamo", fixtureRatingTable(), fixtureSquadTable(), MatchContext{})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, pred.PWinA+pred.PDraw+pred.PWinB, 1e-9)
	assert.InDelta(t, 1.0/3, pred.ClassifierProbs[0], 1e-9)

	dc, err := model.PredictOutcome("Arsenal", "Dinamo", true)
	require.NoError(t, err)
	expected := params.RatingWeight*dc.PWinA + params.ClassifierWeight/3
	assert.InDelta(t, expected, pred.PWinA, 1e-9)
}

func TestEnsembleExtremeWeights(t *testing.T) {
	model := fittedRatingModel(t)

	// All weight on the rating model reproduces its forecast.
	p1 := DefaultParams()
	p1.RatingWeight, p1.ClassifierWeight = 1.0, 0.0
	e1, err := NewEnsemble(model, uniformClassifier(), p1)
	require.NoError(t, err)
	pred, err := e1.Predict("Arsenal", "Celtic", fixtureRatingTable(), fixtureSquadTable(), MatchContext{})
	require.NoError(t, err)
	dc, err := model.PredictOutcome("Arsenal", "Celtic", true)
	require.NoError(t, err)
	assert.InDelta(t, dc.PWinA, pred.PWinA, 1e-6)

	// All weight on the classifier gives its (uniform) forecast.
	p2 := DefaultParams()
	p2.RatingWeight, p2.ClassifierWeight = 0.0, 1.0
	e2, err := NewEnsemble(model, uniformClassifier(), p2)
	require.NoError(t, err)
	pred2, err := e2.Predict("Arsenal", "Celtic", fixtureRatingTable(), fixtureSquadTable(), MatchContext{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3, pred2.PWinA, 1e-6)
	assert.InDelta(t, 1.0, pred2.PWinA+pred2.PDraw+pred2.PWinB, 1e-9)
}

func TestEnsembleHostMirroring(t *testing.T) {
	ensemble := ratingsOnlyEnsemble(t)
	ratings := fixtureRatingTable()
	squads := fixtureSquadTable()

	hosted, err := ensemble.Predict("Celtic", "Bayern", ratings, squads, MatchContext{HostB: true})
	require.NoError(t, err)
	mirror, err := ensemble.Predict("Bayern", "Celtic", ratings, squads, MatchContext{HostA: true})
	require.NoError(t, err)

	assert.InDelta(t, mirror.PWinA, hosted.PWinB, 1e-9)
	assert.InDelta(t, mirror.PWinB, hosted.PWinA, 1e-9)
	assert.InDelta(t, mirror.LambdaA, hosted.LambdaB, 1e-9)
}

func TestSplitKnockoutReducesToRegulation(t *testing.T) {
	pA, pB := splitKnockout(0.7, 0.0, 0.3, true, 0.65, 0.52)
	assert.InDelta(t, 0.7, pA, 1e-12)
	assert.InDelta(t, 0.3, pB, 1e-12)
}

func TestSplitKnockoutSumsToOne(t *testing.T) {
	cases := []struct {
		winA, draw, winB float64
		favorA           bool
	}{
		{0.5, 0.3, 0.2, true},
		{0.2, 0.5, 0.3, false},
		{0.0, 1.0, 0.0, true},
		{0.45, 0.25, 0.30, false},
	}
	for _, c := range cases {
		pA, pB := splitKnockout(c.winA, c.draw, c.winB, c.favorA, 0.65, 0.52)
		assert.InDelta(t, 1.0, pA+pB, 1e-12)
		assert.GreaterOrEqual(t, pA, 0.0)
		assert.GreaterOrEqual(t, pB, 0.0)
	}
}

func TestSplitKnockoutPenaltyEdge(t *testing.T) {
	// Pure coin-flip regulation: the whole difference comes from the shootout edge.
	favored, _ := splitKnockout(0.0, 1.0, 0.0, true, 0.0, 0.52)
	assert.InDelta(t, 0.52, favored, 1e-12)
	unfavored, _ := splitKnockout(0.0, 1.0, 0.0, false, 0.0, 0.52)
	assert.InDelta(t, 0.48, unfavored, 1e-12)
}

func TestPredictKnockoutValid(t *testing.T) {
	ensemble := ratingsOnlyEnsemble(t)

	kp, err := ensemble.PredictKnockout("Arsenal", "Dinamo", fixtureRatingTable(), fixtureSquadTable(), MatchContext{Stage: 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, kp.PAdvanceA+kp.PAdvanceB, 1e-9)
	assert.Greater(t, kp.PAdvanceA, kp.PAdvanceB)
	assert.InDelta(t, 1.0, kp.Regulation.PWinA+kp.Regulation.PDraw+kp.Regulation.PWinB, 1e-9)
}

func TestFavorsATieIsDeterministic(t *testing.T) {
	params := DefaultParams()
	rp := &RatingParams{
		Attack:  map[string]float64{"X": 1.0, "Y": 1.0},
		Defense: map[string]float64{"X": 1.0, "Y": 1.0},
	}
	e := &Ensemble{ratings: newFittedRatingModel(params, rp)}

	first := e.favorsA("X", "Y")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.favorsA("X", "Y"))
	}
}

func TestOptimizeWeightsShortValidationKeepsDefaults(t *testing.T) {
	ensemble, err := NewEnsemble(fittedRatingModel(t), uniformClassifier(), DefaultParams())
	require.NoError(t, err)

	validation := []ValidationMatch{{TeamA: "Arsenal", TeamB: "Celtic", Outcome: 2}}
	require.NoError(t, ensemble.OptimizeWeights(validation, fixtureRatingTable(), fixtureSquadTable()))

	wRating, wClassifier := ensemble.Weights()
	assert.Equal(t, DefaultParams().RatingWeight, wRating)
	assert.Equal(t, DefaultParams().ClassifierWeight, wClassifier)
}

func TestOptimizeWeightsWithoutClassifierKeepsRatingsOnly(t *testing.T) {
	ensemble := ratingsOnlyEnsemble(t)

	var validation []ValidationMatch
	for i := 0; i < 12; i++ {
		validation = append(validation, ValidationMatch{TeamA: "Arsenal", TeamB: "Dinamo", Outcome: 2})
	}
	require.NoError(t, ensemble.OptimizeWeights(validation, fixtureRatingTable(), fixtureSquadTable()))

	wRating, wClassifier := ensemble.Weights()
	assert.Equal(t, 1.0, wRating)
	assert.Equal(t, 0.0, wClassifier)
}

func TestOptimizeWeightsPrefersInformativeModel(t *testing.T) {
	ensemble, err := NewEnsemble(fittedRatingModel(t), uniformClassifier(), DefaultParams())
	require.NoError(t, err)

	// Validation where the rating model is right every time: the grid search
	// should push weight toward it, away from the uniform classifier.
	var validation []ValidationMatch
	for i := 0; i < 12; i++ {
		validation = append(validation,
			ValidationMatch{TeamA: "Arsenal", TeamB: "Dinamo", Outcome: 2},
			ValidationMatch{TeamA: "Dinamo", TeamB: "Arsenal", Outcome: 0},
		)
	}
	require.NoError(t, ensemble.OptimizeWeights(validation, fixtureRatingTable(), fixtureSquadTable()))

	wRating, wClassifier := ensemble.Weights()
	assert.InDelta(t, 0.90, wRating, 1e-9) // grid upper bound
	assert.InDelta(t, 1.0, wRating+wClassifier, 1e-9)
}

func TestFloorAndRenormalize(t *testing.T) {
	p := floorAndRenormalize([3]float64{1.0, 0.0, 0.0})
	assert.InDelta(t, 1.0, p[0]+p[1]+p[2], 1e-12)
	assert.Greater(t, p[1], 0.0)
	assert.Greater(t, p[2], 0.0)
}
