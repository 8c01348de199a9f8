package config

import (
	"fmt"

	"github.com/spf13/viper"

	cuppredictor "github.com/jhw/go-cup-predictor/pkg/cup-predictor"
)

// Config mirrors the engine tunables as flat environment keys so deployments
// can override any of them through a .env file or the process environment.
type Config struct {
	// Rating model
	DecayRate     float64 `mapstructure:"DECAY_RATE"`
	HomeAdvantage float64 `mapstructure:"HOME_ADVANTAGE"`
	Rho           float64 `mapstructure:"RHO"`
	MaxGoals      int     `mapstructure:"MAX_GOALS"`
	MaxIterations int     `mapstructure:"MAX_ITERATIONS"`
	Tolerance     float64 `mapstructure:"TOLERANCE"`

	// Classifier
	ClassifierL2      float64 `mapstructure:"CLASSIFIER_L2"`
	ClassifierMaxIter int     `mapstructure:"CLASSIFIER_MAX_ITER"`

	// Ensemble
	RatingWeight     float64 `mapstructure:"RATING_WEIGHT"`
	ClassifierWeight float64 `mapstructure:"CLASSIFIER_WEIGHT"`
	ExtraTimeProb    float64 `mapstructure:"EXTRA_TIME_PROB"`
	PenaltyEdge      float64 `mapstructure:"PENALTY_EDGE"`

	// Simulation
	Replications int   `mapstructure:"REPLICATIONS"`
	Workers      int   `mapstructure:"WORKERS"`
	Seed         int64 `mapstructure:"SEED"`

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// LoadConfig reads a .env file (current directory or its parent) plus the
// process environment, falling back to the reference defaults.
func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	defaults := cuppredictor.DefaultParams()

	// Set defaults
	viper.SetDefault("DECAY_RATE", defaults.DecayRate)
	viper.SetDefault("HOME_ADVANTAGE", defaults.HomeAdvantage)
	viper.SetDefault("RHO", defaults.Rho)
	viper.SetDefault("MAX_GOALS", defaults.MaxGoals)
	viper.SetDefault("MAX_ITERATIONS", defaults.MaxIterations)
	viper.SetDefault("TOLERANCE", defaults.Tolerance)
	viper.SetDefault("CLASSIFIER_L2", defaults.ClassifierL2)
	viper.SetDefault("CLASSIFIER_MAX_ITER", defaults.ClassifierMaxIter)
	viper.SetDefault("RATING_WEIGHT", defaults.RatingWeight)
	viper.SetDefault("CLASSIFIER_WEIGHT", defaults.ClassifierWeight)
	viper.SetDefault("EXTRA_TIME_PROB", defaults.ExtraTimeProb)
	viper.SetDefault("PENALTY_EDGE", defaults.PenaltyEdge)
	viper.SetDefault("REPLICATIONS", defaults.Replications)
	viper.SetDefault("WORKERS", defaults.Workers)
	viper.SetDefault("SEED", defaults.Seed)
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

// Params converts the loaded configuration into engine parameters.
func (c *Config) Params() *cuppredictor.Params {
	return &cuppredictor.Params{
		DecayRate:     c.DecayRate,
		HomeAdvantage: c.HomeAdvantage,
		Rho:           c.Rho,
		MaxGoals:      c.MaxGoals,
		MaxIterations: c.MaxIterations,
		Tolerance:     c.Tolerance,

		ClassifierL2:      c.ClassifierL2,
		ClassifierMaxIter: c.ClassifierMaxIter,

		RatingWeight:     c.RatingWeight,
		ClassifierWeight: c.ClassifierWeight,
		ExtraTimeProb:    c.ExtraTimeProb,
		PenaltyEdge:      c.PenaltyEdge,

		Replications: c.Replications,
		Workers:      c.Workers,
		Seed:         c.Seed,
	}
}

// LoadParams is a convenience wrapper for callers that only want Params.
func LoadParams() (*cuppredictor.Params, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Params(), nil
}
