package cuppredictor

import "time"

// Venue indicates whether the first-listed team had home advantage.
type Venue string

const (
	VenueHome    Venue = "home"
	VenueNeutral Venue = "neutral"
)

// MatchRecord represents a completed international match used for rating fits.
// Date may be nil for matches with unknown dates; those receive full recency weight.
type MatchRecord struct {
	TeamA  string     `json:"team_a"`
	TeamB  string     `json:"team_b"`
	ScoreA int        `json:"score_a"`
	ScoreB int        `json:"score_b"`
	Date   *time.Time `json:"date,omitempty"`
	Venue  Venue      `json:"venue"`
}

// RatingParams holds the fitted Dixon-Coles parameters. Attack and Defense are
// multiplicative strengths; after a fit mean attack is rescaled to exactly 1.0
// with the scale folded into defense, which restores identifiability without
// changing any attack*defense product.
type RatingParams struct {
	Attack        map[string]float64 `json:"attack"`
	Defense       map[string]float64 `json:"defense"`
	HomeAdvantage float64            `json:"home_advantage"`
	Rho           float64            `json:"rho"`
	LogLikelihood float64            `json:"log_likelihood"`
	Iterations    int                `json:"iterations"`
	Converged     bool               `json:"converged"`
}

// TeamStrength is one row of the sorted strengths table.
// Higher Defense means more goals conceded, so Overall = Attack / Defense.
type TeamStrength struct {
	Name    string  `json:"name"`
	Attack  float64 `json:"attack"`
	Defense float64 `json:"defense"`
	Overall float64 `json:"overall"`
}

// MatchPrediction is a blended 90-minute outcome forecast for one fixture.
// PWinA+PDraw+PWinB always sums to 1. RatingProbs and ClassifierProbs carry
// the raw sub-model outputs in the same [winA, draw, winB] order.
type MatchPrediction struct {
	TeamA           string     `json:"team_a"`
	TeamB           string     `json:"team_b"`
	PWinA           float64    `json:"p_win_a"`
	PDraw           float64    `json:"p_draw"`
	PWinB           float64    `json:"p_win_b"`
	LambdaA         float64    `json:"lambda_a"`
	LambdaB         float64    `json:"lambda_b"`
	RatingProbs     [3]float64 `json:"rating_probs"`
	ClassifierProbs [3]float64 `json:"classifier_probs"`
}

// KnockoutPrediction extends a 90-minute forecast with extra-time and penalty
// modelling. PAdvanceA+PAdvanceB is exactly 1.
type KnockoutPrediction struct {
	TeamA      string          `json:"team_a"`
	TeamB      string          `json:"team_b"`
	PAdvanceA  float64         `json:"p_advance_a"`
	PAdvanceB  float64         `json:"p_advance_b"`
	Regulation MatchPrediction `json:"regulation"`
}

// RatingSnapshot carries one team's external rating state at a point in time.
type RatingSnapshot struct {
	Rating          float64 `json:"rating"`
	RatingAverage   float64 `json:"rating_average"`
	Change3M        float64 `json:"change_3m"`
	Change6M        float64 `json:"change_6m"`
	Change12M       float64 `json:"change_12m"`
	CareerMatches   int     `json:"career_matches"`
	CareerWins      int     `json:"career_wins"`
	CareerGoalsFor  int     `json:"career_goals_for"`
}

// RatingTable maps team name to rating snapshot.
type RatingTable map[string]RatingSnapshot

// SquadFeatures is the fixed 14-field per-team squad aggregate.
// An absent team resolves to the zero value, never an error.
type SquadFeatures struct {
	AvgRating         float64 `json:"avg_rating"`
	AttackOutput      float64 `json:"attack_output"`
	DefenseOutput     float64 `json:"defense_output"`
	Goalkeeping       float64 `json:"goalkeeping"`
	MarketValueTotal  float64 `json:"market_value_total"`
	MarketValueMedian float64 `json:"market_value_median"`
	TopFiveRating     float64 `json:"top_five_rating"`
	BigLeagueShare    float64 `json:"big_league_share"`
	AvgAge            float64 `json:"avg_age"`
	DepthStdDev       float64 `json:"depth_std_dev"`
	PassAccuracy      float64 `json:"pass_accuracy"`
	ExperienceCaps    float64 `json:"experience_caps"`
	MinutesShare      float64 `json:"minutes_share"`
	InjuryCount       float64 `json:"injury_count"`
}

// SquadTable maps team name to squad aggregate.
type SquadTable map[string]SquadFeatures

// HeadToHead is an optional prior-meetings record from team A's perspective.
type HeadToHead struct {
	Matches     int     `json:"matches"`
	WinPctA     float64 `json:"win_pct_a"`
	AvgGoalDiff float64 `json:"avg_goal_diff"`
}

// MatchContext carries the situational inputs to the feature builder.
type MatchContext struct {
	Stage           int         `json:"stage"` // ordinal: 0=group, rising through knockout rounds
	HostA           bool        `json:"host_a"`
	HostB           bool        `json:"host_b"`
	RestDaysA       float64     `json:"rest_days_a"`
	RestDaysB       float64     `json:"rest_days_b"`
	GroupMatchIndex int         `json:"group_match_index"`
	MustWinA        bool        `json:"must_win_a"`
	MustWinB        bool        `json:"must_win_b"`
	H2H             *HeadToHead `json:"h2h,omitempty"`
}

// FeatureVector is a named float mapping over the fixed feature schema.
// Missing inputs contribute 0.0, never a null.
type FeatureVector map[string]float64

// GroupDraw maps group label to its ordered team list. Placeholder entries
// ("", "TBD", "TBC") are excluded from simulation.
type GroupDraw map[string][]string

// Knockout round labels, assigned by rounds remaining to the final.
const (
	RoundR32      = "R32"
	RoundR16      = "R16"
	RoundQF       = "QF"
	RoundSF       = "SF"
	RoundFinal    = "Final"
	RoundChampion = "Champion"
)

// roundOrder is the accumulation order for round-reach aggregation.
var roundOrder = []string{RoundR32, RoundR16, RoundQF, RoundSF, RoundFinal, RoundChampion}

// TeamOutcome aggregates one team's tournament fate over all replications.
// Reach probabilities are monotonically non-increasing with round depth.
type TeamOutcome struct {
	Team          string    `json:"team"`
	Group         string    `json:"group"`
	PositionProbs []float64 `json:"position_probs"` // index 0 = group winner
	PReachR32     float64   `json:"p_reach_r32"`
	PReachR16     float64   `json:"p_reach_r16"`
	PReachQF      float64   `json:"p_reach_qf"`
	PReachSF      float64   `json:"p_reach_sf"`
	PReachFinal   float64   `json:"p_reach_final"`
	PChampion     float64   `json:"p_champion"`
}

// GroupStandingRow is one team's aggregated group-stage line.
type GroupStandingRow struct {
	Group         string    `json:"group"`
	Team          string    `json:"team"`
	AvgPoints     float64   `json:"avg_points"`
	AvgGoalDiff   float64   `json:"avg_goal_diff"`
	PositionProbs []float64 `json:"position_probs"`
}

// FixtureOdds is one precomputed group-fixture prediction row.
type FixtureOdds struct {
	Group   string  `json:"group"`
	TeamA   string  `json:"team_a"`
	TeamB   string  `json:"team_b"`
	PWinA   float64 `json:"p_win_a"`
	PDraw   float64 `json:"p_draw"`
	PWinB   float64 `json:"p_win_b"`
	LambdaA float64 `json:"lambda_a"`
	LambdaB float64 `json:"lambda_b"`
}

// SimulationResult bundles the aggregated output of one tournament simulation.
// Empty is the explicit marker for "no valid groups"; the reason is logged.
type SimulationResult struct {
	RunID         string             `json:"run_id"`
	Replications  int                `json:"replications"`
	Empty         bool               `json:"empty"`
	Outcomes      []TeamOutcome      `json:"outcomes"`
	Standings     []GroupStandingRow `json:"standings"`
	FixtureGrid   []FixtureOdds      `json:"fixture_grid"`
	DroppedGroups []string           `json:"dropped_groups,omitempty"`
	Elapsed       time.Duration      `json:"elapsed"`
}

// Params holds every tunable of the engine. Construct once (DefaultParams or
// config.LoadParams) and pass in; components treat it as read-only.
type Params struct {
	// Rating model
	DecayRate     float64 `json:"decay_rate"`     // per-year exponential recency decay
	HomeAdvantage float64 `json:"home_advantage"` // optimizer starting point
	Rho           float64 `json:"rho"`            // optimizer starting point
	MaxGoals      int     `json:"max_goals"`      // score matrix bound per side
	MaxIterations int     `json:"max_iterations"`
	Tolerance     float64 `json:"tolerance"`

	// Classifier
	ClassifierL2      float64 `json:"classifier_l2"`
	ClassifierMaxIter int     `json:"classifier_max_iter"`

	// Ensemble
	RatingWeight     float64 `json:"rating_weight"`
	ClassifierWeight float64 `json:"classifier_weight"`
	ExtraTimeProb    float64 `json:"extra_time_prob"`
	PenaltyEdge      float64 `json:"penalty_edge"`

	// Simulation
	Replications int   `json:"replications"`
	Workers      int   `json:"workers"` // 0 = NumCPU
	Seed         int64 `json:"seed"`    // 0 = time-based
}

// DefaultParams returns the reference parameterization.
func DefaultParams() *Params {
	return &Params{
		DecayRate:     0.5,
		HomeAdvantage: 0.25,
		Rho:           -0.1,
		MaxGoals:      10,
		MaxIterations: 200,
		Tolerance:     1e-6,

		ClassifierL2:      1.0,
		ClassifierMaxIter: 300,

		RatingWeight:     0.65,
		ClassifierWeight: 0.35,
		ExtraTimeProb:    0.65,
		PenaltyEdge:      0.52,

		Replications: 10000,
		Workers:      0,
		Seed:         0,
	}
}
