package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/jhw/go-cup-predictor/internal/logger"
	"github.com/jhw/go-cup-predictor/pkg/config"
	cuppredictor "github.com/jhw/go-cup-predictor/pkg/cup-predictor"
)

func main() {
	// Command line flags
	var (
		dataFile     = flag.String("data", "", "Path to a run request JSON file")
		replications = flag.Int("replications", 0, "Monte Carlo replications (0 = config default)")
		seed         = flag.Int64("seed", 0, "RNG seed (0 = time-based)")
		workers      = flag.Int("workers", 0, "Simulation workers (0 = NumCPU)")
		verbose      = flag.Bool("verbose", false, "Show per-fixture odds")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg.LogLevel)

	params := cfg.Params()
	if *replications > 0 {
		params.Replications = *replications
	}
	if *seed != 0 {
		params.Seed = *seed
	}
	if *workers > 0 {
		params.Workers = *workers
	}

	fmt.Printf("🏆 Go Cup Predictor Demo\n")
	fmt.Printf("========================\n\n")

	var request cuppredictor.Request
	if *dataFile != "" {
		request, err = loadRequestFromFile(*dataFile)
		if err != nil {
			log.Fatalf("Failed to load request: %v", err)
		}
		fmt.Printf("✓ Loaded %d matches from %s\n", len(request.Matches), *dataFile)
	} else {
		request = syntheticRequest()
		fmt.Printf("✓ Generated synthetic demo data (%d matches, %d groups)\n",
			len(request.Matches), len(request.Groups))
	}
	request.Params = params

	fmt.Printf("\nRunning tournament simulation...\n")
	fmt.Printf("- Replications: %d\n", params.Replications)
	fmt.Printf("- Ensemble weights: %.2f rating / %.2f classifier\n\n",
		params.RatingWeight, params.ClassifierWeight)

	result, err := cuppredictor.Run(request)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	fmt.Printf("✓ Completed in %v\n", result.ProcessingTime)
	fmt.Printf("✓ Rating fit: converged=%v (iterations: %d, log likelihood: %.2f)\n",
		result.RatingParams.Converged, result.RatingParams.Iterations, result.RatingParams.LogLikelihood)
	fmt.Printf("✓ Home advantage: %.3f, rho: %.3f\n",
		result.RatingParams.HomeAdvantage, result.RatingParams.Rho)

	displayStrengths(result.Strengths)
	if *verbose {
		displayFixtureOdds(result.Simulation)
	}
	displayOutcomes(result.Simulation)
}

func loadRequestFromFile(path string) (cuppredictor.Request, error) {
	var request cuppredictor.Request
	data, err := os.ReadFile(path)
	if err != nil {
		return request, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &request); err != nil {
		return request, fmt.Errorf("parsing %s: %w", path, err)
	}
	return request, nil
}

// syntheticRequest fabricates two groups of four teams with distinct
// strengths plus two seasons of warmup matches, so the demo runs without any
// input files.
func syntheticRequest() cuppredictor.Request {
	teams := []string{
		"Albion", "Borussia", "Corinthians", "Dynamo",
		"Estudiantes", "Flamengo", "Galatasaray", "Hibernian",
	}
	// Goal expectation per team, strongest first.
	strength := []float64{1.9, 1.7, 1.5, 1.4, 1.2, 1.1, 0.9, 0.8}

	rng := rand.New(rand.NewSource(42))
	var matches []cuppredictor.MatchRecord

	// Two seasons of double round-robin warmup.
	for season := 0; season < 2; season++ {
		for i := range teams {
			for j := range teams {
				if i == j {
					continue
				}
				date := time.Date(2023+season, time.Month(1+rng.Intn(10)), 1+rng.Intn(28), 0, 0, 0, 0, time.UTC)
				matches = append(matches, cuppredictor.MatchRecord{
					TeamA:  teams[i],
					TeamB:  teams[j],
					ScoreA: samplePoisson(rng, strength[i]*1.15), // mild host bump
					ScoreB: samplePoisson(rng, strength[j]),
					Date:   &date,
					Venue:  cuppredictor.VenueHome,
				})
			}
		}
	}

	ratings := make(cuppredictor.RatingTable, len(teams))
	squads := make(cuppredictor.SquadTable, len(teams))
	for i, team := range teams {
		ratings[team] = cuppredictor.RatingSnapshot{
			Rating:         1900 - 40*float64(i),
			RatingAverage:  1880 - 38*float64(i),
			CareerMatches:  300 + 10*i,
			CareerWins:     180 - 10*i,
			CareerGoalsFor: 520 - 30*i,
		}
		squads[team] = cuppredictor.SquadFeatures{
			AvgRating:        7.2 - 0.1*float64(i),
			AttackOutput:     strength[i],
			DefenseOutput:    2.4 - strength[i],
			Goalkeeping:      6.8,
			MarketValueTotal: 400 - 30*float64(i),
			AvgAge:           26.5,
			PassAccuracy:     0.85 - 0.01*float64(i),
		}
	}

	return cuppredictor.Request{
		Matches: matches,
		Ratings: ratings,
		Squads:  squads,
		RatingsByYear: map[int]cuppredictor.RatingTable{
			2023: ratings,
			2024: ratings,
		},
		SquadsByYear: map[int]cuppredictor.SquadTable{
			2023: squads,
			2024: squads,
		},
		Groups: cuppredictor.GroupDraw{
			"A": {"Albion", "Dynamo", "Estudiantes", "Hibernian"},
			"B": {"Borussia", "Corinthians", "Flamengo", "Galatasaray"},
		},
	}
}

func samplePoisson(rng *rand.Rand, lambda float64) int {
	limit := rng.Float64()
	cumulative := 0.0
	p := math.Exp(-lambda)
	for k := 0; k < 12; k++ {
		if k > 0 {
			p *= lambda / float64(k)
		}
		cumulative += p
		if limit <= cumulative {
			return k
		}
	}
	return 12
}

func displayStrengths(strengths []cuppredictor.TeamStrength) {
	fmt.Printf("\n📊 Team Strengths\n")
	fmt.Printf("=================\n")
	fmt.Printf("%3s %-15s %8s %8s %8s\n", "Pos", "Team", "Attack", "Defense", "Overall")
	fmt.Printf("%3s %-15s %8s %8s %8s\n", "---", "----", "------", "-------", "-------")
	for i, s := range strengths {
		fmt.Printf("%3d %-15s %8.3f %8.3f %8.3f\n", i+1, s.Name, s.Attack, s.Defense, s.Overall)
	}
}

func displayFixtureOdds(sim *cuppredictor.SimulationResult) {
	fmt.Printf("\n⚽ Group Fixture Odds\n")
	fmt.Printf("=====================\n")
	fmt.Printf("%-5s %-15s %-15s %6s %6s %6s\n", "Grp", "Team A", "Team B", "P(A)", "P(X)", "P(B)")
	for _, f := range sim.FixtureGrid {
		fmt.Printf("%-5s %-15s %-15s %6.3f %6.3f %6.3f\n",
			f.Group, f.TeamA, f.TeamB, f.PWinA, f.PDraw, f.PWinB)
	}
}

func displayOutcomes(sim *cuppredictor.SimulationResult) {
	if sim.Empty {
		fmt.Printf("\n⚠️  No valid groups to simulate\n")
		return
	}

	outcomes := make([]cuppredictor.TeamOutcome, len(sim.Outcomes))
	copy(outcomes, sim.Outcomes)
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].PChampion > outcomes[j].PChampion
	})

	fmt.Printf("\n🏆 Tournament Outcomes (%d replications)\n", sim.Replications)
	fmt.Printf("========================================\n")
	fmt.Printf("%-15s %-4s %8s %8s %8s %8s\n", "Team", "Grp", "P(Win)", "P(Top2)", "P(SF)", "P(Final)")
	for _, o := range outcomes {
		topTwo := 0.0
		if len(o.PositionProbs) > 0 {
			topTwo = o.PositionProbs[0]
		}
		if len(o.PositionProbs) > 1 {
			topTwo += o.PositionProbs[1]
		}
		fmt.Printf("%-15s %-4s %8.3f %8.3f %8.3f %8.3f\n",
			o.Team, o.Group, o.PChampion, topTwo, o.PReachSF, o.PReachFinal)
	}
}
