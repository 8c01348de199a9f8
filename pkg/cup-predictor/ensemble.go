package cuppredictor

import (
	"fmt"
	"hash/fnv"
	"math"

	"github.com/jhw/go-cup-predictor/internal/logger"
)

// ensembleFloor keeps blended probabilities strictly positive.
const ensembleFloor = 1e-6

// minValidationSize is the shortest validation set OptimizeWeights accepts.
const minValidationSize = 10

// Ensemble blends the rating model with the context classifier and models
// extra time and penalties for knockout fixtures.
type Ensemble struct {
	params      *Params
	ratings     *RatingModel
	classifier  *Classifier
	wRating     float64
	wClassifier float64
	etProb      float64
	penEdge     float64
}

// ValidationMatch is one held-out result for weight optimization and
// backtesting. Outcome uses the 3-way coding {2=winA, 1=draw, 0=winB}.
type ValidationMatch struct {
	TeamA   string       `json:"team_a"`
	TeamB   string       `json:"team_b"`
	Context MatchContext `json:"context"`
	Outcome int          `json:"outcome"`
}

// NewEnsemble wires the two fitted sub-models together. Weights come from
// params and must sum to 1.
func NewEnsemble(ratings *RatingModel, classifier *Classifier, params *Params) (*Ensemble, error) {
	if params == nil {
		params = DefaultParams()
	}
	if math.Abs(params.RatingWeight+params.ClassifierWeight-1) > 1e-9 {
		return nil, fmt.Errorf("ensemble weights %.3f+%.3f do not sum to 1",
			params.RatingWeight, params.ClassifierWeight)
	}
	if classifier == nil && params.ClassifierWeight != 0 {
		return nil, fmt.Errorf("classifier weight %.3f requires a classifier", params.ClassifierWeight)
	}
	return &Ensemble{
		params:      params,
		ratings:     ratings,
		classifier:  classifier,
		wRating:     params.RatingWeight,
		wClassifier: params.ClassifierWeight,
		etProb:      params.ExtraTimeProb,
		penEdge:     params.PenaltyEdge,
	}, nil
}

// Weights returns the current blend weights (rating, classifier).
func (e *Ensemble) Weights() (float64, float64) {
	return e.wRating, e.wClassifier
}

// SetWeights replaces the blend weights; they must sum to 1.
func (e *Ensemble) SetWeights(wRating, wClassifier float64) error {
	if math.Abs(wRating+wClassifier-1) > 1e-9 {
		return fmt.Errorf("ensemble weights %.3f+%.3f do not sum to 1", wRating, wClassifier)
	}
	e.wRating = wRating
	e.wClassifier = wClassifier
	return nil
}

// Predict blends both sub-models into a 90-minute forecast. The result is a
// valid probability triple for any weights summing to 1.
func (e *Ensemble) Predict(teamA, teamB string, ratings RatingTable, squads SquadTable, ctx MatchContext) (*MatchPrediction, error) {
	dc, err := e.regulationForecast(teamA, teamB, ctx)
	if err != nil {
		return nil, err
	}

	dcProbs := [3]float64{dc.PWinA, dc.PDraw, dc.PWinB}
	clfProbs := dcProbs // ratings-only mode: no classifier signal
	if e.classifier != nil {
		features := BuildFeatures(teamA, teamB, ratings, squads, ctx)
		probs, err := e.classifier.PredictProba(features.Slice())
		if err != nil {
			return nil, err
		}
		clfProbs = probs
	}

	var blended [3]float64
	for i := range blended {
		blended[i] = e.wRating*dcProbs[i] + e.wClassifier*clfProbs[i]
	}
	blended = floorAndRenormalize(blended)

	return &MatchPrediction{
		TeamA:           teamA,
		TeamB:           teamB,
		PWinA:           blended[0],
		PDraw:           blended[1],
		PWinB:           blended[2],
		LambdaA:         dc.LambdaA,
		LambdaB:         dc.LambdaB,
		RatingProbs:     dcProbs,
		ClassifierProbs: clfProbs,
	}, nil
}

// regulationForecast handles venue: host advantage applies to whichever side
// hosts, and everything else is neutral.
func (e *Ensemble) regulationForecast(teamA, teamB string, ctx MatchContext) (*OutcomeForecast, error) {
	if ctx.HostB && !ctx.HostA {
		mirrored, err := e.ratings.PredictOutcome(teamB, teamA, false)
		if err != nil {
			return nil, err
		}
		return &OutcomeForecast{
			PWinA:   mirrored.PWinB,
			PDraw:   mirrored.PDraw,
			PWinB:   mirrored.PWinA,
			LambdaA: mirrored.LambdaB,
			LambdaB: mirrored.LambdaA,
		}, nil
	}
	return e.ratings.PredictOutcome(teamA, teamB, !ctx.HostA)
}

// PredictKnockout derives advance probabilities from the 90-minute forecast:
// a share of the draw mass resolves in extra time (split in proportion to the
// regulation win probabilities) and the remainder on penalties, where a fixed
// edge goes to the higher-rated team.
func (e *Ensemble) PredictKnockout(teamA, teamB string, ratings RatingTable, squads SquadTable, ctx MatchContext) (*KnockoutPrediction, error) {
	prediction, err := e.Predict(teamA, teamB, ratings, squads, ctx)
	if err != nil {
		return nil, err
	}

	pAdvanceA, pAdvanceB := splitKnockout(
		prediction.PWinA, prediction.PDraw, prediction.PWinB,
		e.favorsA(teamA, teamB), e.etProb, e.penEdge)

	return &KnockoutPrediction{
		TeamA:      teamA,
		TeamB:      teamB,
		PAdvanceA:  pAdvanceA,
		PAdvanceB:  pAdvanceB,
		Regulation: *prediction,
	}, nil
}

// splitKnockout resolves the 90-minute draw mass. With zero draw probability
// it reduces to the regulation win probability exactly.
func splitKnockout(pWinA, pDraw, pWinB float64, favorA bool, etProb, penEdge float64) (float64, float64) {
	extraTime := etProb * pDraw
	penalties := pDraw - extraTime

	etA := 0.5 * extraTime
	if denom := pWinA + pWinB; denom > 0 {
		etA = extraTime * pWinA / denom
	}

	pensA := penalties * (1 - penEdge)
	if favorA {
		pensA = penalties * penEdge
	}

	pAdvanceA := pWinA + etA + pensA
	return pAdvanceA, 1 - pAdvanceA
}

// favorsA decides the penalty edge by overall rating. Exactly equal ratings
// fall back to a deterministic pairing hash, so neither listed side is
// silently favored.
func (e *Ensemble) favorsA(teamA, teamB string) bool {
	overallA := e.ratings.overall(teamA)
	overallB := e.ratings.overall(teamB)
	if overallA != overallB {
		return overallA > overallB
	}
	h := fnv.New32a()
	h.Write([]byte(teamA + "|" + teamB))
	return h.Sum32()%2 == 0
}

// OptimizeWeights grid-searches the rating weight over [0.30, 0.90] in 0.05
// steps against a validation set, minimizing multiclass log loss. Short or
// empty validation input keeps the configured defaults.
func (e *Ensemble) OptimizeWeights(validation []ValidationMatch, ratings RatingTable, squads SquadTable) error {
	log := logger.WithComponent("ensemble")

	if e.classifier == nil {
		log.Warn("No classifier to blend against, keeping ratings-only weights")
		return nil
	}
	if len(validation) < minValidationSize {
		e.wRating = e.params.RatingWeight
		e.wClassifier = e.params.ClassifierWeight
		log.WithField("validation_size", len(validation)).
			Warn("Validation set too small, keeping default weights")
		return nil
	}

	type precomputed struct {
		dc  [3]float64
		clf [3]float64
		idx int
	}
	rows := make([]precomputed, 0, len(validation))
	for _, vm := range validation {
		dc, err := e.regulationForecast(vm.TeamA, vm.TeamB, vm.Context)
		if err != nil {
			return fmt.Errorf("optimizing weights: %w", err)
		}
		features := BuildFeatures(vm.TeamA, vm.TeamB, ratings, squads, vm.Context)
		clf, err := e.classifier.PredictProba(features.Slice())
		if err != nil {
			return fmt.Errorf("optimizing weights: %w", err)
		}
		rows = append(rows, precomputed{
			dc:  [3]float64{dc.PWinA, dc.PDraw, dc.PWinB},
			clf: clf,
			idx: outcomeIndex(vm.Outcome),
		})
	}

	bestW := e.wRating
	bestLoss := math.Inf(1)
	for step := 0; step <= 12; step++ {
		w := 0.30 + 0.05*float64(step)
		loss := 0.0
		for _, row := range rows {
			var blended [3]float64
			for i := range blended {
				blended[i] = w*row.dc[i] + (1-w)*row.clf[i]
			}
			blended = floorAndRenormalize(blended)
			loss -= math.Log(clampProb(blended[row.idx]))
		}
		loss /= float64(len(rows))
		if loss < bestLoss {
			bestLoss = loss
			bestW = w
		}
	}

	e.wRating = bestW
	e.wClassifier = 1 - bestW
	log.WithFields(map[string]interface{}{
		"rating_weight": bestW,
		"log_loss":      bestLoss,
		"validation":    len(rows),
	}).Info("Ensemble weights optimized")

	return nil
}

// floorAndRenormalize floors each entry and rescales the triple to sum to 1.
func floorAndRenormalize(p [3]float64) [3]float64 {
	total := 0.0
	for i := range p {
		if p[i] < ensembleFloor {
			p[i] = ensembleFloor
		}
		total += p[i]
	}
	for i := range p {
		p[i] /= total
	}
	return p
}

// outcomeIndex maps the 3-way outcome coding onto [winA, draw, winB] indices.
func outcomeIndex(outcome int) int {
	switch outcome {
	case 2:
		return 0
	case 1:
		return 1
	default:
		return 2
	}
}
