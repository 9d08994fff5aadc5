// Package config loads and validates the pipeline configuration from a
// TOML file. Schema mappings, scoring weights and thresholds all live here
// so a run is fully described by one config plus the two input paths.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/EmPi44/csv-matching/internal/tabular"
)

//go:embed sample_config.toml
var sampleConfig string

// Source describes one input dataset: its column mapping and which
// canonical fields must be present.
type Source struct {
	// Columns maps canonical field names to source column headers.
	// Header matching is case-insensitive and trimmed.
	Columns map[string]string `toml:"columns"`
}

// Weights are the component weights of the fuzzy score. They must sum to 1.
type Weights struct {
	Building float64 `toml:"building"`
	Unit     float64 `toml:"unit"`
	Area     float64 `toml:"area"`
}

// Thresholds are the confidence bucket boundaries. Scores at or above
// High bucket High, at or above Medium bucket Medium, at or above Low
// bucket Low; everything below Low is rejected outright.
type Thresholds struct {
	High   float64 `toml:"high"`
	Medium float64 `toml:"medium"`
	Low    float64 `toml:"low"`
}

// Matching holds the tier parameters.
type Matching struct {
	// PropertyType selects the composite key shape: "apartment" keys on
	// project|building|unit, "villa" on project|plot.
	PropertyType string `toml:"property_type"`

	AreaTolerancePct      float64 `toml:"area_tolerance_pct"`
	AreaDecayPct          float64 `toml:"area_decay_pct"`
	SqftThreshold         float64 `toml:"sqft_threshold"`
	MinScore              float64 `toml:"min_score"`
	MaxCandidatesPerOwner int     `toml:"max_candidates_per_owner"`

	// Similarity selects the building-name measure: token_set or
	// jaro_winkler.
	Similarity string `toml:"similarity"`

	// Tier1TieBreak decides which transaction wins when an owner's
	// composite key joins several: "first" (stable input order) or
	// "closest_area".
	Tier1TieBreak string `toml:"tier1_tie_break"`

	// Tier2TieBreak orders equal-score candidates: "lowest_txn_id" or
	// "closest_area".
	Tier2TieBreak string `toml:"tier2_tie_break"`

	Weights    Weights    `toml:"weights"`
	Thresholds Thresholds `toml:"thresholds"`
}

// Pipeline holds execution and output settings.
type Pipeline struct {
	// Workers is the fuzzy-tier worker count; 0 means one per CPU.
	Workers   int    `toml:"workers"`
	BatchSize int    `toml:"batch_size"`
	OutputDir string `toml:"output_dir"`
	ReviewDir string `toml:"review_dir"`
}

// Store holds the optional Postgres persistence settings.
type Store struct {
	// DSN enables run/match/decision persistence when non-empty.
	DSN string `toml:"dsn"`
}

// Config is the root configuration.
type Config struct {
	Owners       Source   `toml:"owners"`
	Transactions Source   `toml:"transactions"`
	Matching     Matching `toml:"matching"`
	Pipeline     Pipeline `toml:"pipeline"`
	Store        Store    `toml:"store"`
}

// Canonical fields each source must map.
var (
	RequiredOwnerFields       = []string{"building", "unit", "area", "owner_name", "party_type"}
	RequiredTransactionFields = []string{"txn_id", "building", "area", "project"}
)

// Default returns the configuration the sample config documents.
func Default() *Config {
	cfg := &Config{}
	if err := toml.Unmarshal([]byte(sampleConfig), cfg); err != nil {
		// The embedded sample is part of the build; failing to parse it
		// is a programming error.
		panic(fmt.Sprintf("embedded sample config invalid: %v", err))
	}
	return cfg
}

// Load reads the config at path, or the defaults when path is empty and
// PROPMATCH_CONFIG is unset.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PROPMATCH_CONFIG")
	}
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if dsn := os.Getenv("PROPMATCH_DB_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks internal consistency: weights sum to one, thresholds
// are ordered, tie-break policies are known.
func (c *Config) Validate() error {
	w := c.Matching.Weights
	if sum := w.Building + w.Unit + w.Area; math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("matching weights must sum to 1.0, got %.4f", sum)
	}
	t := c.Matching.Thresholds
	if !(t.High > t.Medium && t.Medium > t.Low && t.Low > 0) {
		return fmt.Errorf("thresholds must satisfy high > medium > low > 0, got %.2f/%.2f/%.2f",
			t.High, t.Medium, t.Low)
	}
	if c.Matching.MinScore > t.Low {
		return fmt.Errorf("min_score %.2f must not exceed the low threshold %.2f", c.Matching.MinScore, t.Low)
	}
	if c.Matching.AreaTolerancePct <= 0 || c.Matching.AreaTolerancePct >= 1 {
		return fmt.Errorf("area_tolerance_pct must be in (0,1), got %.4f", c.Matching.AreaTolerancePct)
	}
	if c.Matching.AreaDecayPct <= 0 {
		return fmt.Errorf("area_decay_pct must be positive, got %.4f", c.Matching.AreaDecayPct)
	}
	if c.Matching.MaxCandidatesPerOwner <= 0 {
		return fmt.Errorf("max_candidates_per_owner must be positive, got %d", c.Matching.MaxCandidatesPerOwner)
	}
	switch c.Matching.PropertyType {
	case "apartment", "villa":
	default:
		return fmt.Errorf("property_type must be apartment or villa, got %q", c.Matching.PropertyType)
	}
	switch c.Matching.Tier1TieBreak {
	case "first", "closest_area":
	default:
		return fmt.Errorf("tier1_tie_break must be first or closest_area, got %q", c.Matching.Tier1TieBreak)
	}
	switch c.Matching.Tier2TieBreak {
	case "lowest_txn_id", "closest_area":
	default:
		return fmt.Errorf("tier2_tie_break must be lowest_txn_id or closest_area, got %q", c.Matching.Tier2TieBreak)
	}
	switch c.Matching.Similarity {
	case "", "token_set", "jaro_winkler":
	default:
		return fmt.Errorf("similarity must be token_set or jaro_winkler, got %q", c.Matching.Similarity)
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.Pipeline.BatchSize)
	}
	return nil
}

// OwnerColumns returns the owner schema mapping as a tabular.ColumnMap.
func (c *Config) OwnerColumns() tabular.ColumnMap {
	return tabular.ColumnMap(c.Owners.Columns)
}

// TransactionColumns returns the transaction schema mapping.
func (c *Config) TransactionColumns() tabular.ColumnMap {
	return tabular.ColumnMap(c.Transactions.Columns)
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}
