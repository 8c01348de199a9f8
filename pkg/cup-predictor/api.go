package cuppredictor

import (
	"fmt"
	"time"

	"github.com/jhw/go-cup-predictor/internal/logger"
)

// Request carries everything one tournament run needs: historical matches for
// the rating fit, rating/squad snapshots for feature building, optional
// per-year snapshots for classifier training, optional held-out matches for
// weight tuning, and the group draw to simulate.
type Request struct {
	Matches       []MatchRecord       `json:"matches"`
	Ratings       RatingTable         `json:"ratings"`
	Squads        SquadTable          `json:"squads"`
	RatingsByYear map[int]RatingTable `json:"ratings_by_year,omitempty"`
	SquadsByYear  map[int]SquadTable  `json:"squads_by_year,omitempty"`
	Validation    []ValidationMatch   `json:"validation,omitempty"`
	Groups        GroupDraw           `json:"groups"`
	Params        *Params             `json:"params,omitempty"`
}

// Result is the output of one full run.
type Result struct {
	Strengths        []TeamStrength    `json:"strengths"`
	RatingParams     RatingParams      `json:"rating_params"`
	Simulation       *SimulationResult `json:"simulation"`
	Bundle           *ModelBundle      `json:"bundle,omitempty"`
	ProcessingTime   time.Duration     `json:"processing_time"`
	MatchesProcessed int               `json:"matches_processed"`
	MatchesDropped   int               `json:"matches_dropped"`
}

// Run is the main entry point: it fits the rating model, trains the
// classifier when per-year snapshots are available, tunes the blend weights
// against any held-out matches, and simulates the tournament.
func Run(request Request) (*Result, error) {
	startTime := time.Now()
	log := logger.WithComponent("api")

	if err := validateRequest(request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	params := request.Params
	if params == nil {
		params = DefaultParams()
	}

	ratingModel := NewRatingModel(params)
	if err := ratingModel.Fit(request.Matches); err != nil {
		return nil, fmt.Errorf("fitting rating model: %w", err)
	}

	classifier, effectiveParams := trainClassifier(request, params)

	ensemble, err := NewEnsemble(ratingModel, classifier, effectiveParams)
	if err != nil {
		return nil, fmt.Errorf("building ensemble: %w", err)
	}

	if len(request.Validation) > 0 && classifier != nil {
		if err := ensemble.OptimizeWeights(request.Validation, request.Ratings, request.Squads); err != nil {
			return nil, fmt.Errorf("tuning ensemble weights: %w", err)
		}
	}

	sim := NewSimulator(ensemble, request.Ratings, request.Squads, effectiveParams)
	simulation, err := sim.Run(request.Groups)
	if err != nil {
		return nil, fmt.Errorf("running simulation: %w", err)
	}

	strengths, err := ratingModel.TeamStrengths()
	if err != nil {
		return nil, fmt.Errorf("extracting strengths: %w", err)
	}
	ratingParams, err := ratingModel.RatingParams()
	if err != nil {
		return nil, fmt.Errorf("extracting rating params: %w", err)
	}

	var bundle *ModelBundle
	if classifier != nil {
		bundle, err = ensemble.Bundle()
		if err != nil {
			return nil, fmt.Errorf("snapshotting model: %w", err)
		}
	}

	result := &Result{
		Strengths:        strengths,
		RatingParams:     *ratingParams,
		Simulation:       simulation,
		Bundle:           bundle,
		ProcessingTime:   time.Since(startTime),
		MatchesProcessed: len(request.Matches) - ratingModel.DroppedRows(),
		MatchesDropped:   ratingModel.DroppedRows(),
	}

	wRating, wClassifier := ensemble.Weights()
	log.WithFields(map[string]interface{}{
		"matches":           result.MatchesProcessed,
		"dropped":           result.MatchesDropped,
		"teams":             len(strengths),
		"rating_weight":     wRating,
		"classifier_weight": wClassifier,
		"elapsed":           result.ProcessingTime.String(),
	}).Info("run complete")

	return result, nil
}

// trainClassifier fits the secondary model when year-indexed snapshots exist.
// Without usable training rows the run degrades to ratings-only weights
// rather than failing.
func trainClassifier(request Request, params *Params) (*Classifier, *Params) {
	log := logger.WithComponent("api")

	if len(request.RatingsByYear) == 0 {
		log.Warn("no per-year rating snapshots; running ratings-only")
		return nil, ratingsOnlyParams(params)
	}

	ts := BuildTrainingMatrix(request.Matches, request.RatingsByYear, request.SquadsByYear)
	if len(ts.X) == 0 {
		log.Warn("empty classifier training set; running ratings-only")
		return nil, ratingsOnlyParams(params)
	}

	classifier := NewClassifier(params)
	if err := classifier.Fit(ts); err != nil {
		log.WithField("error", err.Error()).Warn("classifier training failed; running ratings-only")
		return nil, ratingsOnlyParams(params)
	}
	return classifier, params
}

// ratingsOnlyParams copies params with all blend weight on the rating model.
func ratingsOnlyParams(params *Params) *Params {
	p := *params
	p.RatingWeight = 1.0
	p.ClassifierWeight = 0.0
	return &p
}
