package cuppredictor

import (
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhw/go-cup-predictor/internal/logger"
)

// Simulator runs Monte Carlo tournament replications: group stage, standings,
// then a generic single-elimination knockout over winners and runners-up.
// Every distinct matchup is scored at most once; replications share the
// read-only prediction caches and accumulate per worker.
type Simulator struct {
	ensemble *Ensemble
	params   *Params
	ratings  RatingTable
	squads   SquadTable
}

// NewSimulator wires a fitted ensemble to the lookup tables used for feature
// building during simulation.
func NewSimulator(ensemble *Ensemble, ratings RatingTable, squads SquadTable, params *Params) *Simulator {
	if params == nil {
		params = DefaultParams()
	}
	if params.Replications <= 0 {
		p := *params
		p.Replications = DefaultParams().Replications
		params = &p
	}
	return &Simulator{
		ensemble: ensemble,
		params:   params,
		ratings:  ratings,
		squads:   squads,
	}
}

// simGroup is one validated group with precomputed fixture predictions.
// Team values are global indices; fixtures reference local positions.
type simGroup struct {
	label    string
	teams    []int
	fixtures []simFixture
}

type simFixture struct {
	a, b int // local indices within the group
	pred *MatchPrediction
}

// knockoutCache memoizes knockout predictions per (teamA, teamB, round).
// Opponent identity varies by replication, so both names are in the key.
type knockoutCache struct {
	mu        sync.RWMutex
	entries   map[knockoutKey]*KnockoutPrediction
	simulator *Simulator
}

type knockoutKey struct {
	a, b  string
	round string
}

func (kc *knockoutCache) get(teamA, teamB, round string, stage int) *KnockoutPrediction {
	key := knockoutKey{a: teamA, b: teamB, round: round}

	kc.mu.RLock()
	cached, ok := kc.entries[key]
	kc.mu.RUnlock()
	if ok {
		return cached
	}

	kc.mu.Lock()
	defer kc.mu.Unlock()
	if cached, ok := kc.entries[key]; ok {
		return cached
	}

	ctx := MatchContext{Stage: stage}
	prediction, err := kc.simulator.ensemble.PredictKnockout(teamA, teamB, kc.simulator.ratings, kc.simulator.squads, ctx)
	if err != nil {
		// Sub-models were validated before replication started; an error here
		// is unexpected, so log it and fall back to a coin flip.
		logger.WithComponent("simulator").WithField("error", err.Error()).
			Error("Knockout prediction failed mid-simulation")
		prediction = &KnockoutPrediction{TeamA: teamA, TeamB: teamB, PAdvanceA: 0.5, PAdvanceB: 0.5}
	}
	kc.entries[key] = prediction
	return prediction
}

// accumulator holds one worker's tallies; merged after all workers finish.
type accumulator struct {
	positions [][]int // [team][group finish position]
	rounds    [][]int // [team][round index in roundOrder]
	points    []float64
	goalDiff  []float64
}

func newAccumulator(groupSizes []int) *accumulator {
	n := 0
	for _, size := range groupSizes {
		n += size
	}
	acc := &accumulator{
		positions: make([][]int, n),
		rounds:    make([][]int, n),
		points:    make([]float64, n),
		goalDiff:  make([]float64, n),
	}
	ti := 0
	for _, size := range groupSizes {
		for i := 0; i < size; i++ {
			acc.positions[ti] = make([]int, size)
			acc.rounds[ti] = make([]int, len(roundOrder))
			ti++
		}
	}
	return acc
}

func (a *accumulator) merge(other *accumulator) {
	for ti := range a.positions {
		for p := range a.positions[ti] {
			a.positions[ti][p] += other.positions[ti][p]
		}
		for r := range a.rounds[ti] {
			a.rounds[ti][r] += other.rounds[ti][r]
		}
		a.points[ti] += other.points[ti]
		a.goalDiff[ti] += other.goalDiff[ti]
	}
}

// isPlaceholder reports whether a draw entry is not a concrete team.
func isPlaceholder(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return true
	}
	upper := strings.ToUpper(trimmed)
	return upper == "TBD" || upper == "TBC"
}

// Run simulates the tournament. Groups with fewer than two concrete teams are
// dropped with a logged reason; with no valid group at all the result carries
// the explicit Empty marker instead of an error.
func (s *Simulator) Run(draw GroupDraw) (*SimulationResult, error) {
	start := time.Now()
	log := logger.WithComponent("simulator")

	result := &SimulationResult{
		RunID:        uuid.NewString(),
		Replications: s.params.Replications,
	}

	labels := make([]string, 0, len(draw))
	for label := range draw {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var teamNames []string
	var groupOf []string
	var groupSizes []int
	var groups []simGroup

	for _, label := range labels {
		var concrete []string
		for _, team := range draw[label] {
			if isPlaceholder(team) {
				continue
			}
			concrete = append(concrete, team)
		}
		if len(concrete) < 2 {
			log.WithFields(map[string]interface{}{
				"group": label,
				"teams": len(concrete),
			}).Warn("Dropping group with fewer than two concrete teams")
			result.DroppedGroups = append(result.DroppedGroups, label)
			continue
		}

		g := simGroup{label: label}
		for _, team := range concrete {
			g.teams = append(g.teams, len(teamNames))
			teamNames = append(teamNames, team)
			groupOf = append(groupOf, label)
		}
		groupSizes = append(groupSizes, len(concrete))
		groups = append(groups, g)
	}

	if len(groups) == 0 {
		log.Warn("No valid groups in draw, returning empty result")
		result.Empty = true
		result.Elapsed = time.Since(start)
		return result, nil
	}

	// Precompute every group fixture prediction once; this grid is shared
	// read-only across all replications.
	for gi := range groups {
		g := &groups[gi]
		matchIndex := 0
		for i := 0; i < len(g.teams); i++ {
			for j := i + 1; j < len(g.teams); j++ {
				ctx := MatchContext{Stage: 0, GroupMatchIndex: matchIndex}
				pred, err := s.ensemble.Predict(teamNames[g.teams[i]], teamNames[g.teams[j]], s.ratings, s.squads, ctx)
				if err != nil {
					return nil, fmt.Errorf("simulating tournament: %w", err)
				}
				g.fixtures = append(g.fixtures, simFixture{a: i, b: j, pred: pred})
				result.FixtureGrid = append(result.FixtureGrid, FixtureOdds{
					Group:   g.label,
					TeamA:   pred.TeamA,
					TeamB:   pred.TeamB,
					PWinA:   pred.PWinA,
					PDraw:   pred.PDraw,
					PWinB:   pred.PWinB,
					LambdaA: pred.LambdaA,
					LambdaB: pred.LambdaB,
				})
				matchIndex++
			}
		}
	}

	ko := &knockoutCache{
		entries:   make(map[knockoutKey]*KnockoutPrediction),
		simulator: s,
	}

	workers := s.params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > s.params.Replications {
		workers = 1
	}
	seed := s.params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	accumulators := make([]*accumulator, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		reps := s.params.Replications / workers
		if w < s.params.Replications%workers {
			reps++
		}
		wg.Add(1)
		go func(w, reps int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed + int64(w)))
			acc := newAccumulator(groupSizes)
			for r := 0; r < reps; r++ {
				s.replicate(rng, groups, teamNames, ko, acc)
			}
			accumulators[w] = acc
		}(w, reps)
	}
	wg.Wait()

	total := accumulators[0]
	for _, acc := range accumulators[1:] {
		total.merge(acc)
	}

	s.aggregate(result, teamNames, groupOf, total)
	result.Elapsed = time.Since(start)

	log.WithFields(map[string]interface{}{
		"run_id":       result.RunID,
		"groups":       len(groups),
		"teams":        len(teamNames),
		"replications": result.Replications,
		"elapsed":      result.Elapsed.String(),
	}).Info("Tournament simulation complete")

	return result, nil
}

// replicate plays out one full tournament.
func (s *Simulator) replicate(rng *rand.Rand, groups []simGroup, teamNames []string, ko *knockoutCache, acc *accumulator) {
	winners := make([]int, len(groups))
	runners := make([]int, len(groups))

	for gi, g := range groups {
		n := len(g.teams)
		points := make([]int, n)
		goalDiff := make([]int, n)
		goalsFor := make([]int, n)

		for _, fx := range g.fixtures {
			goalsA, goalsB := sampleScoreline(rng, fx.pred)

			switch {
			case goalsA > goalsB:
				points[fx.a] += 3
			case goalsA < goalsB:
				points[fx.b] += 3
			default:
				points[fx.a]++
				points[fx.b]++
			}
			goalDiff[fx.a] += goalsA - goalsB
			goalDiff[fx.b] += goalsB - goalsA
			goalsFor[fx.a] += goalsA
			goalsFor[fx.b] += goalsB
		}

		order := rankGroup(points, goalDiff, goalsFor)
		for pos, local := range order {
			acc.positions[g.teams[local]][pos]++
		}
		for local, ti := range g.teams {
			acc.points[ti] += float64(points[local])
			acc.goalDiff[ti] += float64(goalDiff[local])
		}
		winners[gi] = g.teams[order[0]]
		runners[gi] = g.teams[order[1]]
	}

	// Cross-pair winner[i] against runner-up[last-i] so same-group rematches
	// are avoided where the bracket allows it.
	nGroups := len(groups)
	bracket := make([]int, 0, 2*nGroups)
	for i := 0; i < nGroups; i++ {
		bracket = append(bracket, winners[i], runners[nGroups-1-i])
	}

	for len(bracket) > 1 {
		label, stage := roundLabel(len(bracket))
		li := roundIndex(label)
		for _, ti := range bracket {
			acc.rounds[ti][li]++
		}

		next := make([]int, 0, (len(bracket)+1)/2)
		for i := 0; i+1 < len(bracket); i += 2 {
			a, b := bracket[i], bracket[i+1]
			kp := ko.get(teamNames[a], teamNames[b], label, stage)
			if rng.Float64() < kp.PAdvanceA {
				next = append(next, a)
			} else {
				next = append(next, b)
			}
		}
		if len(bracket)%2 == 1 {
			// bye: the unpaired team carries forward
			next = append(next, bracket[len(bracket)-1])
		}
		bracket = next
	}

	acc.rounds[bracket[0]][roundIndex(RoundChampion)]++
}

// sampleScoreline draws the fixture outcome in two steps: one uniform draw
// classifies the result, then independently sampled Poisson goals are forced
// consistent with the sampled category. This is deliberately not a joint draw
// from the scoreline distribution conditioned on the category.
func sampleScoreline(rng *rand.Rand, pred *MatchPrediction) (int, int) {
	u := rng.Float64()
	goalsA := PoissonSample(rng, pred.LambdaA)
	goalsB := PoissonSample(rng, pred.LambdaB)

	switch {
	case u < pred.PWinA:
		if goalsA <= goalsB {
			goalsA = goalsB + 1
		}
	case u < pred.PWinA+pred.PDraw:
		if goalsA != goalsB {
			level := goalsA
			if goalsB < level {
				level = goalsB
			}
			goalsA, goalsB = level, level
		}
	default:
		if goalsB <= goalsA {
			goalsB = goalsA + 1
		}
	}
	return goalsA, goalsB
}

// rankGroup orders local team indices by points desc, goal difference desc,
// goals-for desc. The sort is stable, so ties beyond goals-for keep input
// order deterministically; head-to-head and disciplinary tie-breaks from
// competition regulations are intentionally not modeled.
func rankGroup(points, goalDiff, goalsFor []int) []int {
	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		i, j := order[x], order[y]
		if points[i] != points[j] {
			return points[i] > points[j]
		}
		if goalDiff[i] != goalDiff[j] {
			return goalDiff[i] > goalDiff[j]
		}
		return goalsFor[i] > goalsFor[j]
	})
	return order
}

// roundLabel maps the surviving team count onto the standard round names by
// rounds remaining to the final, regardless of bracket size.
func roundLabel(teamsLeft int) (string, int) {
	rounds := 0
	for n := teamsLeft; n > 1; n = (n + 1) / 2 {
		rounds++
	}
	switch rounds {
	case 1:
		return RoundFinal, 5
	case 2:
		return RoundSF, 4
	case 3:
		return RoundQF, 3
	case 4:
		return RoundR16, 2
	default:
		return RoundR32, 1
	}
}

func roundIndex(label string) int {
	for i, l := range roundOrder {
		if l == label {
			return i
		}
	}
	return 0
}

// aggregate converts merged tallies into the flat result tables.
func (s *Simulator) aggregate(result *SimulationResult, teamNames, groupOf []string, acc *accumulator) {
	n := float64(result.Replications)

	for ti, name := range teamNames {
		positionProbs := make([]float64, len(acc.positions[ti]))
		for p, count := range acc.positions[ti] {
			positionProbs[p] = float64(count) / n
		}

		outcome := TeamOutcome{
			Team:          name,
			Group:         groupOf[ti],
			PositionProbs: positionProbs,
			PReachR32:     float64(acc.rounds[ti][roundIndex(RoundR32)]) / n,
			PReachR16:     float64(acc.rounds[ti][roundIndex(RoundR16)]) / n,
			PReachQF:      float64(acc.rounds[ti][roundIndex(RoundQF)]) / n,
			PReachSF:      float64(acc.rounds[ti][roundIndex(RoundSF)]) / n,
			PReachFinal:   float64(acc.rounds[ti][roundIndex(RoundFinal)]) / n,
			PChampion:     float64(acc.rounds[ti][roundIndex(RoundChampion)]) / n,
		}
		result.Outcomes = append(result.Outcomes, outcome)

		result.Standings = append(result.Standings, GroupStandingRow{
			Group:         groupOf[ti],
			Team:          name,
			AvgPoints:     acc.points[ti] / n,
			AvgGoalDiff:   acc.goalDiff[ti] / n,
			PositionProbs: positionProbs,
		})
	}
}
