package cuppredictor

import (
	"sort"
	"strings"
	"time"
)

// Feature schema, grouped as rating / squad / context. The order is the
// classifier's input contract; never reorder without refitting.
var featureNames = []string{
	// rating
	"rating_diff",
	"rating_avg_diff",
	"change_3m_a",
	"change_3m_b",
	"change_6m_a",
	"change_6m_b",
	"change_12m_a",
	"change_12m_b",
	"win_pct_a",
	"win_pct_b",
	"goals_per_match_a",
	"goals_per_match_b",
	"momentum_a",
	"momentum_b",
	// squad (per-field A minus B)
	"squad_avg_rating_diff",
	"squad_attack_output_diff",
	"squad_defense_output_diff",
	"squad_goalkeeping_diff",
	"squad_market_value_total_diff",
	"squad_market_value_median_diff",
	"squad_top_five_rating_diff",
	"squad_big_league_share_diff",
	"squad_avg_age_diff",
	"squad_depth_std_dev_diff",
	"squad_pass_accuracy_diff",
	"squad_experience_caps_diff",
	"squad_minutes_share_diff",
	"squad_injury_count_diff",
	// context
	"stage_ordinal",
	"host_a",
	"host_b",
	"rest_days_a",
	"rest_days_b",
	"group_match_index",
	"must_win_a",
	"must_win_b",
	"h2h_matches",
	"h2h_win_pct_a",
	"h2h_avg_goal_diff",
}

// FeatureNames returns the fixed schema order.
func FeatureNames() []string {
	names := make([]string, len(featureNames))
	copy(names, featureNames)
	return names
}

// Slice returns the vector values in schema order. Missing names read as 0.0.
func (fv FeatureVector) Slice() []float64 {
	values := make([]float64, len(featureNames))
	for i, name := range featureNames {
		values[i] = fv[name]
	}
	return values
}

// Lookup resolves a snapshot by exact name, then case-insensitively.
func (rt RatingTable) Lookup(team string) (RatingSnapshot, bool) {
	if snap, ok := rt[team]; ok {
		return snap, true
	}
	for name, snap := range rt {
		if strings.EqualFold(name, team) {
			return snap, true
		}
	}
	return RatingSnapshot{}, false
}

// neutralSnapshot is the documented default for unknown teams: the table's
// average rating with zeroed momentum and career counters.
func (rt RatingTable) neutralSnapshot() RatingSnapshot {
	if len(rt) == 0 {
		return RatingSnapshot{}
	}
	total := 0.0
	for _, snap := range rt {
		total += snap.Rating
	}
	avg := total / float64(len(rt))
	return RatingSnapshot{Rating: avg, RatingAverage: avg}
}

func (rt RatingTable) resolve(team string) RatingSnapshot {
	if snap, ok := rt.Lookup(team); ok {
		return snap
	}
	return rt.neutralSnapshot()
}

// Lookup resolves squad aggregates; an absent team yields the zero vector.
func (st SquadTable) Lookup(team string) SquadFeatures {
	if sf, ok := st[team]; ok {
		return sf
	}
	for name, sf := range st {
		if strings.EqualFold(name, team) {
			return sf
		}
	}
	return SquadFeatures{}
}

// BuildFeatures is a pure function over its inputs: unknown teams resolve to
// documented defaults so the simulator can score hypothetical matchups.
func BuildFeatures(teamA, teamB string, ratings RatingTable, squads SquadTable, ctx MatchContext) FeatureVector {
	fv := make(FeatureVector, len(featureNames))

	ra := ratings.resolve(teamA)
	rb := ratings.resolve(teamB)

	fv["rating_diff"] = ra.Rating - rb.Rating
	fv["rating_avg_diff"] = ra.RatingAverage - rb.RatingAverage
	fv["change_3m_a"] = ra.Change3M
	fv["change_3m_b"] = rb.Change3M
	fv["change_6m_a"] = ra.Change6M
	fv["change_6m_b"] = rb.Change6M
	fv["change_12m_a"] = ra.Change12M
	fv["change_12m_b"] = rb.Change12M
	fv["win_pct_a"] = careerRate(ra.CareerWins, ra.CareerMatches)
	fv["win_pct_b"] = careerRate(rb.CareerWins, rb.CareerMatches)
	fv["goals_per_match_a"] = careerRate(ra.CareerGoalsFor, ra.CareerMatches)
	fv["goals_per_match_b"] = careerRate(rb.CareerGoalsFor, rb.CareerMatches)
	fv["momentum_a"] = ra.Change3M - ra.Change12M
	fv["momentum_b"] = rb.Change3M - rb.Change12M

	sa := squads.Lookup(teamA)
	sb := squads.Lookup(teamB)
	fv["squad_avg_rating_diff"] = sa.AvgRating - sb.AvgRating
	fv["squad_attack_output_diff"] = sa.AttackOutput - sb.AttackOutput
	fv["squad_defense_output_diff"] = sa.DefenseOutput - sb.DefenseOutput
	fv["squad_goalkeeping_diff"] = sa.Goalkeeping - sb.Goalkeeping
	fv["squad_market_value_total_diff"] = sa.MarketValueTotal - sb.MarketValueTotal
	fv["squad_market_value_median_diff"] = sa.MarketValueMedian - sb.MarketValueMedian
	fv["squad_top_five_rating_diff"] = sa.TopFiveRating - sb.TopFiveRating
	fv["squad_big_league_share_diff"] = sa.BigLeagueShare - sb.BigLeagueShare
	fv["squad_avg_age_diff"] = sa.AvgAge - sb.AvgAge
	fv["squad_depth_std_dev_diff"] = sa.DepthStdDev - sb.DepthStdDev
	fv["squad_pass_accuracy_diff"] = sa.PassAccuracy - sb.PassAccuracy
	fv["squad_experience_caps_diff"] = sa.ExperienceCaps - sb.ExperienceCaps
	fv["squad_minutes_share_diff"] = sa.MinutesShare - sb.MinutesShare
	fv["squad_injury_count_diff"] = sa.InjuryCount - sb.InjuryCount

	fv["stage_ordinal"] = float64(ctx.Stage)
	fv["host_a"] = boolFeature(ctx.HostA)
	fv["host_b"] = boolFeature(ctx.HostB)
	fv["rest_days_a"] = ctx.RestDaysA
	fv["rest_days_b"] = ctx.RestDaysB
	fv["group_match_index"] = float64(ctx.GroupMatchIndex)
	fv["must_win_a"] = boolFeature(ctx.MustWinA)
	fv["must_win_b"] = boolFeature(ctx.MustWinB)
	if ctx.H2H != nil {
		fv["h2h_matches"] = float64(ctx.H2H.Matches)
		fv["h2h_win_pct_a"] = ctx.H2H.WinPctA
		fv["h2h_avg_goal_diff"] = ctx.H2H.AvgGoalDiff
	} else {
		fv["h2h_matches"] = 0
		fv["h2h_win_pct_a"] = 0
		fv["h2h_avg_goal_diff"] = 0
	}

	return fv
}

func careerRate(numerator, matches int) float64 {
	if matches <= 0 {
		return 0
	}
	return float64(numerator) / float64(matches)
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// TrainingSet is the classifier's input matrix with 3-way labels
// (2=winA, 1=draw, 0=winB).
type TrainingSet struct {
	Names []string    `json:"names"`
	X     [][]float64 `json:"x"`
	Y     []int       `json:"y"`
}

// BuildTrainingMatrix featurizes historical matches, resolving the nearest
// available rating and squad snapshot year per match. Matches without a date
// use the latest snapshot year.
func BuildTrainingMatrix(matches []MatchRecord, ratingsByYear map[int]RatingTable, squadsByYear map[int]SquadTable) *TrainingSet {
	ts := &TrainingSet{Names: FeatureNames()}

	ratingYears := sortedYears(len(ratingsByYear), func(out *[]int) {
		for y := range ratingsByYear {
			*out = append(*out, y)
		}
	})
	squadYears := sortedYears(len(squadsByYear), func(out *[]int) {
		for y := range squadsByYear {
			*out = append(*out, y)
		}
	})

	for _, match := range matches {
		if match.ScoreA < 0 || match.ScoreB < 0 || match.TeamA == "" || match.TeamB == "" {
			continue
		}

		matchYear := 0
		if match.Date != nil {
			matchYear = match.Date.Year()
		}
		ratings := ratingsByYear[nearestYear(ratingYears, matchYear, match.Date)]
		squads := squadsByYear[nearestYear(squadYears, matchYear, match.Date)]

		ctx := MatchContext{HostA: match.Venue == VenueHome}
		fv := BuildFeatures(match.TeamA, match.TeamB, ratings, squads, ctx)

		label := 1
		if match.ScoreA > match.ScoreB {
			label = 2
		} else if match.ScoreA < match.ScoreB {
			label = 0
		}

		ts.X = append(ts.X, fv.Slice())
		ts.Y = append(ts.Y, label)
	}

	return ts
}

func sortedYears(capacity int, fill func(*[]int)) []int {
	years := make([]int, 0, capacity)
	fill(&years)
	sort.Ints(years)
	return years
}

// nearestYear picks the snapshot year closest to the match year; undated
// matches resolve to the latest snapshot.
func nearestYear(years []int, matchYear int, date *time.Time) int {
	if len(years) == 0 {
		return 0
	}
	if date == nil {
		return years[len(years)-1]
	}
	best := years[0]
	for _, y := range years {
		if abs(y-matchYear) < abs(best-matchYear) {
			best = y
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
