package cuppredictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureNamesStableOrder(t *testing.T) {
	names := FeatureNames()
	assert.Len(t, names, 39)
	assert.Equal(t, "rating_diff", names[0])
	assert.Equal(t, "h2h_avg_goal_diff", names[len(names)-1])

	// Returned slice is a copy; mutating it must not affect the schema.
	names[0] = "clobbered"
	assert.Equal(t, "rating_diff", FeatureNames()[0])
}

func TestBuildFeaturesIsPure(t *testing.T) {
	ratings := fixtureRatingTable()
	squads := fixtureSquadTable()
	ctx := MatchContext{Stage: 2, HostA: true, RestDaysA: 4, RestDaysB: 3}

	first := BuildFeatures("Arsenal", "Celtic", ratings, squads, ctx)
	second := BuildFeatures("Arsenal", "Celtic", ratings, squads, ctx)
	assert.Equal(t, first, second)

	assert.InDelta(t, 110.0, first["rating_diff"], 1e-9)
	assert.Equal(t, 1.0, first["host_a"])
	assert.Equal(t, 0.0, first["host_b"])
	assert.Equal(t, 2.0, first["stage_ordinal"])
}

func TestBuildFeaturesUnknownTeams(t *testing.T) {
	ratings := fixtureRatingTable()
	squads := fixtureSquadTable()

	fv := BuildFeatures("Nobody", "Anybody", ratings, squads, MatchContext{})

	// Both sides resolve to the table average, so every diff is zero.
	assert.InDelta(t, 0.0, fv["rating_diff"], 1e-9)
	assert.InDelta(t, 0.0, fv["squad_avg_rating_diff"], 1e-9)

	// Every schema name must be present with a finite value.
	for _, name := range FeatureNames() {
		_, ok := fv[name]
		assert.True(t, ok, "missing feature %s", name)
	}
}

func TestBuildFeaturesCaseInsensitiveLookup(t *testing.T) {
	fv := BuildFeatures("ARSENAL", "celtic", fixtureRatingTable(), fixtureSquadTable(), MatchContext{})
	assert.InDelta(t, 110.0, fv["rating_diff"], 1e-9)
}

func TestBuildFeaturesHeadToHead(t *testing.T) {
	h2h := &HeadToHead{Matches: 6, WinPctA: 0.5, AvgGoalDiff: 0.33}
	fv := BuildFeatures("Arsenal", "Bayern", fixtureRatingTable(), fixtureSquadTable(), MatchContext{H2H: h2h})
	assert.Equal(t, 6.0, fv["h2h_matches"])
	assert.Equal(t, 0.5, fv["h2h_win_pct_a"])

	without := BuildFeatures("Arsenal", "Bayern", fixtureRatingTable(), fixtureSquadTable(), MatchContext{})
	assert.Equal(t, 0.0, without["h2h_matches"])
}

func TestFeatureVectorSliceOrder(t *testing.T) {
	fv := BuildFeatures("Arsenal", "Celtic", fixtureRatingTable(), fixtureSquadTable(), MatchContext{})
	slice := fv.Slice()
	require.Len(t, slice, len(FeatureNames()))
	assert.Equal(t, fv["rating_diff"], slice[0])

	// Absent names read as zero.
	sparse := FeatureVector{"rating_diff": 5.0}
	s := sparse.Slice()
	assert.Equal(t, 5.0, s[0])
	assert.Equal(t, 0.0, s[1])
}

func TestBuildTrainingMatrixLabels(t *testing.T) {
	date := time.Date(2023, time.June, 10, 0, 0, 0, 0, time.UTC)
	matches := []MatchRecord{
		{TeamA: "Arsenal", TeamB: "Celtic", ScoreA: 2, ScoreB: 0, Date: &date, Venue: VenueHome},
		{TeamA: "Celtic", TeamB: "Bayern", ScoreA: 1, ScoreB: 1, Date: &date, Venue: VenueNeutral},
		{TeamA: "Dinamo", TeamB: "Arsenal", ScoreA: 0, ScoreB: 3, Date: &date, Venue: VenueHome},
		{TeamA: "", TeamB: "Bayern", ScoreA: 1, ScoreB: 0, Date: &date}, // skipped
	}
	ratingsByYear := map[int]RatingTable{2023: fixtureRatingTable()}
	squadsByYear := map[int]SquadTable{2023: fixtureSquadTable()}

	ts := BuildTrainingMatrix(matches, ratingsByYear, squadsByYear)
	require.Len(t, ts.X, 3)
	assert.Equal(t, []int{2, 1, 0}, ts.Y)
	assert.Equal(t, FeatureNames(), ts.Names)
	for _, row := range ts.X {
		assert.Len(t, row, len(FeatureNames()))
	}
}

func TestBuildTrainingMatrixNearestYear(t *testing.T) {
	in2021 := time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)
	matches := []MatchRecord{
		{TeamA: "Arsenal", TeamB: "Celtic", ScoreA: 1, ScoreB: 0, Date: &in2021, Venue: VenueHome},
		{TeamA: "Arsenal", TeamB: "Celtic", ScoreA: 1, ScoreB: 0, Venue: VenueHome}, // undated -> latest
	}

	early := RatingTable{"Arsenal": {Rating: 2000}, "Celtic": {Rating: 1000}}
	late := RatingTable{"Arsenal": {Rating: 1500}, "Celtic": {Rating: 1400}}
	ratingsByYear := map[int]RatingTable{2020: early, 2024: late}

	ts := BuildTrainingMatrix(matches, ratingsByYear, nil)
	require.Len(t, ts.X, 2)
	assert.InDelta(t, 1000.0, ts.X[0][0], 1e-9) // 2021 resolves to the 2020 table
	assert.InDelta(t, 100.0, ts.X[1][0], 1e-9)  // undated resolves to the 2024 table
}
