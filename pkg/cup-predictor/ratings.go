package cuppredictor

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"

	"github.com/jhw/go-cup-predictor/internal/logger"
)

// RatingModel fits time-weighted Dixon-Coles team strengths by maximum
// likelihood and turns them into scoreline and outcome forecasts.
type RatingModel struct {
	params  *Params
	rp      *RatingParams
	fitted  bool
	dropped int
}

// OutcomeForecast is the rating model's reduction of a scoreline grid.
type OutcomeForecast struct {
	PWinA   float64 `json:"p_win_a"`
	PDraw   float64 `json:"p_draw"`
	PWinB   float64 `json:"p_win_b"`
	LambdaA float64 `json:"lambda_a"`
	LambdaB float64 `json:"lambda_b"`
}

// NewRatingModel creates an unfitted rating model.
func NewRatingModel(params *Params) *RatingModel {
	if params == nil {
		params = DefaultParams()
	}
	return &RatingModel{params: params}
}

// newFittedRatingModel rebuilds a ready-to-predict model from stored parameters.
func newFittedRatingModel(params *Params, rp *RatingParams) *RatingModel {
	m := NewRatingModel(params)
	m.rp = rp
	m.fitted = true
	return m
}

// Fit estimates per-team attack/defense, the home-advantage term and the
// low-score correction rho by minimizing the joint negative log-likelihood.
// Malformed rows are dropped and counted; optimizer non-convergence keeps the
// best-found parameters and is never fatal.
func (m *RatingModel) Fit(matches []MatchRecord) error {
	log := logger.WithComponent("ratings")

	m.dropped = 0
	usable := make([]MatchRecord, 0, len(matches))
	for _, match := range matches {
		if match.TeamA == "" || match.TeamB == "" || match.TeamA == match.TeamB ||
			match.ScoreA < 0 || match.ScoreB < 0 {
			m.dropped++
			continue
		}
		usable = append(usable, match)
	}
	if m.dropped > 0 {
		log.WithField("dropped_rows", m.dropped).Warn("Dropped malformed match rows")
	}
	if len(usable) == 0 {
		return fmt.Errorf("fitting rating model: %w", ErrNoTrainingData)
	}

	weights := recencyWeights(usable, m.params.DecayRate)

	teams := extractTeams(usable)
	idx := make(map[string]int, len(teams))
	for i, t := range teams {
		idx[t] = i
	}
	nTeams := len(teams)
	homePos := 2 * nTeams
	rhoPos := 2*nTeams + 1

	// x layout: log attack per team, log defense per team, home advantage, rho
	x0 := make([]float64, 2*nTeams+2)
	x0[homePos] = m.params.HomeAdvantage
	x0[rhoPos] = m.params.Rho

	nll := func(x []float64) float64 {
		total := 0.0
		for i, match := range usable {
			ia, ib := idx[match.TeamA], idx[match.TeamB]
			home := 0.0
			if match.Venue == VenueHome {
				home = 1.0
			}
			lambdaA := math.Exp(x[ia] + x[nTeams+ib] + x[homePos]*home)
			lambdaB := math.Exp(x[ib] + x[nTeams+ia])

			logP := logPoissonProb(lambdaA, match.ScoreA) +
				logPoissonProb(lambdaB, match.ScoreB) +
				math.Log(clampProb(DixonColesAdjustment(match.ScoreA, match.ScoreB, x[rhoPos])))
			total -= weights[i] * logP
		}
		return total
	}

	grad := func(g, x []float64) {
		for i := range g {
			g[i] = 0
		}
		rho := clampRho(x[rhoPos])
		for i, match := range usable {
			ia, ib := idx[match.TeamA], idx[match.TeamB]
			home := 0.0
			if match.Venue == VenueHome {
				home = 1.0
			}
			lambdaA := math.Exp(x[ia] + x[nTeams+ib] + x[homePos]*home)
			lambdaB := math.Exp(x[ib] + x[nTeams+ia])
			w := weights[i]

			residA := float64(match.ScoreA) - lambdaA
			residB := float64(match.ScoreB) - lambdaB

			g[ia] -= w * residA
			g[nTeams+ib] -= w * residA
			g[ib] -= w * residB
			g[nTeams+ia] -= w * residB
			g[homePos] -= w * residA * home

			switch {
			case match.ScoreA == 0 && match.ScoreB == 0, match.ScoreA == 1 && match.ScoreB == 1:
				g[rhoPos] += w / (1 - rho)
			case match.ScoreA == 1 && match.ScoreB == 0, match.ScoreA == 0 && match.ScoreB == 1:
				g[rhoPos] -= w / (1 + rho)
			}
		}
	}

	problem := optimize.Problem{Func: nll, Grad: grad}
	settings := &optimize.Settings{
		MajorIterations:   m.params.MaxIterations,
		GradientThreshold: m.params.Tolerance,
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})

	best := x0
	iterations := 0
	converged := false
	if result != nil && len(result.X) == len(x0) {
		best = result.X
		iterations = result.Stats.MajorIterations
		switch result.Status {
		case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence,
			optimize.StepConvergence, optimize.MethodConverge:
			converged = true
		}
	}
	if err != nil || !converged {
		log.WithFields(map[string]interface{}{
			"iterations": iterations,
			"error":      fmt.Sprint(err),
		}).Warn("Optimizer did not converge, keeping best-found parameters")
	}

	attack := make(map[string]float64, nTeams)
	defense := make(map[string]float64, nTeams)
	meanAttack := 0.0
	for i, team := range teams {
		attack[team] = math.Exp(best[i])
		defense[team] = math.Exp(best[nTeams+i])
		meanAttack += attack[team]
	}
	meanAttack /= float64(nTeams)

	// Rescale mean attack to exactly 1.0 and fold the scale into defense,
	// preserving every attack*defense product.
	for _, team := range teams {
		attack[team] /= meanAttack
		defense[team] *= meanAttack
	}

	m.rp = &RatingParams{
		Attack:        attack,
		Defense:       defense,
		HomeAdvantage: best[homePos],
		Rho:           clampRho(best[rhoPos]),
		LogLikelihood: -nll(best),
		Iterations:    iterations,
		Converged:     converged,
	}
	m.fitted = true

	log.WithFields(map[string]interface{}{
		"teams":      nTeams,
		"matches":    len(usable),
		"iterations": iterations,
		"converged":  converged,
	}).Info("Rating fit complete")

	return nil
}

// recencyWeights computes exp(-decay * daysSinceLatest/365); 1.0 when the
// match or the whole set carries no dates.
func recencyWeights(matches []MatchRecord, decay float64) []float64 {
	weights := make([]float64, len(matches))

	var latest *MatchRecord
	for i := range matches {
		if matches[i].Date == nil {
			continue
		}
		if latest == nil || matches[i].Date.After(*latest.Date) {
			latest = &matches[i]
		}
	}

	for i := range matches {
		if latest == nil || matches[i].Date == nil {
			weights[i] = 1.0
			continue
		}
		days := latest.Date.Sub(*matches[i].Date).Hours() / 24
		weights[i] = math.Exp(-decay * days / 365)
	}
	return weights
}

func extractTeams(matches []MatchRecord) []string {
	seen := make(map[string]bool)
	for _, match := range matches {
		seen[match.TeamA] = true
		seen[match.TeamB] = true
	}
	teams := make([]string, 0, len(seen))
	for team := range seen {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams
}

// lambdas returns the Poisson means for a pairing. Unknown teams default to
// attack=defense=1.0, so hypothetical matchups never fail.
func (m *RatingModel) lambdas(teamA, teamB string, neutral bool) (float64, float64) {
	attackA, defenseA := m.strengthOf(teamA)
	attackB, defenseB := m.strengthOf(teamB)

	homeTerm := 1.0
	if !neutral {
		homeTerm = math.Exp(m.rp.HomeAdvantage)
	}
	return attackA * defenseB * homeTerm, attackB * defenseA
}

func (m *RatingModel) strengthOf(team string) (attack, defense float64) {
	attack, defense = 1.0, 1.0
	if a, ok := m.rp.Attack[team]; ok {
		attack = a
	}
	if d, ok := m.rp.Defense[team]; ok {
		defense = d
	}
	return attack, defense
}

// overall is the single-number strength used for penalty-edge comparisons.
func (m *RatingModel) overall(team string) float64 {
	attack, defense := m.strengthOf(team)
	return attack / defense
}

// PredictScoreMatrix builds the corrected scoreline grid for a pairing.
func (m *RatingModel) PredictScoreMatrix(teamA, teamB string, neutral bool) (*ScoreMatrix, error) {
	if !m.fitted {
		return nil, fmt.Errorf("predicting score matrix: %w", ErrNotFitted)
	}
	lambdaA, lambdaB := m.lambdas(teamA, teamB, neutral)
	return NewScoreMatrix(lambdaA, lambdaB, m.rp.Rho, m.params.MaxGoals), nil
}

// PredictOutcome reduces the scoreline grid to win/draw/win probabilities.
func (m *RatingModel) PredictOutcome(teamA, teamB string, neutral bool) (*OutcomeForecast, error) {
	matrix, err := m.PredictScoreMatrix(teamA, teamB, neutral)
	if err != nil {
		return nil, err
	}
	lambdaA, lambdaB := m.lambdas(teamA, teamB, neutral)
	outcome := matrix.Outcome()
	return &OutcomeForecast{
		PWinA:   outcome[0],
		PDraw:   outcome[1],
		PWinB:   outcome[2],
		LambdaA: lambdaA,
		LambdaB: lambdaB,
	}, nil
}

// TeamStrengths lists all fitted teams sorted descending by overall strength.
// Repeated calls after one Fit return identical results.
func (m *RatingModel) TeamStrengths() ([]TeamStrength, error) {
	if !m.fitted {
		return nil, fmt.Errorf("listing team strengths: %w", ErrNotFitted)
	}

	strengths := make([]TeamStrength, 0, len(m.rp.Attack))
	for team, attack := range m.rp.Attack {
		defense := m.rp.Defense[team]
		strengths = append(strengths, TeamStrength{
			Name:    team,
			Attack:  attack,
			Defense: defense,
			Overall: attack / defense,
		})
	}

	sort.Slice(strengths, func(i, j int) bool {
		if strengths[i].Overall != strengths[j].Overall {
			return strengths[i].Overall > strengths[j].Overall
		}
		return strengths[i].Name < strengths[j].Name
	})

	return strengths, nil
}

// RatingParams exposes a copy of the fitted parameters for bundling.
func (m *RatingModel) RatingParams() (*RatingParams, error) {
	if !m.fitted {
		return nil, fmt.Errorf("reading rating parameters: %w", ErrNotFitted)
	}
	cp := *m.rp
	cp.Attack = make(map[string]float64, len(m.rp.Attack))
	cp.Defense = make(map[string]float64, len(m.rp.Defense))
	for k, v := range m.rp.Attack {
		cp.Attack[k] = v
	}
	for k, v := range m.rp.Defense {
		cp.Defense[k] = v
	}
	return &cp, nil
}

// DroppedRows reports how many malformed rows the last Fit filtered out.
func (m *RatingModel) DroppedRows() int {
	return m.dropped
}
