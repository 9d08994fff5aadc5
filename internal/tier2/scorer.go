package tier2

import (
	"math"

	"github.com/EmPi44/csv-matching/internal/model"
	"github.com/EmPi44/csv-matching/internal/similarity"
)

// Weights are the component weights of the overall fuzzy score.
type Weights struct {
	Building float64
	Unit     float64
	Area     float64
}

// DefaultWeights returns the documented 0.5/0.3/0.2 split.
func DefaultWeights() Weights {
	return Weights{Building: 0.5, Unit: 0.3, Area: 0.2}
}

// Thresholds are the confidence bucket boundaries.
type Thresholds struct {
	High   float64
	Medium float64
	Low    float64
}

// DefaultThresholds returns the documented 0.90/0.85/0.75 boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.90, Medium: 0.85, Low: 0.75}
}

// Scorer combines the three component similarities into one score and a
// confidence bucket. It is read-only after construction and safe to share
// across workers.
type Scorer struct {
	weights    Weights
	thresholds Thresholds
	building   similarity.Measure

	// areaDecayPct is the area difference at which the area component
	// reaches zero.
	areaDecayPct float64
}

// NewScorer creates a scorer. A nil measure defaults to token-set
// similarity.
func NewScorer(weights Weights, thresholds Thresholds, measure similarity.Measure, areaDecayPct float64) *Scorer {
	if measure == nil {
		measure = similarity.TokenSet{}
	}
	if areaDecayPct <= 0 {
		areaDecayPct = 0.02
	}
	return &Scorer{
		weights:      weights,
		thresholds:   thresholds,
		building:     measure,
		areaDecayPct: areaDecayPct,
	}
}

// Score computes the weighted pair score and its components. The result
// is rounded to 4 decimals and always lies in [0,1].
func (s *Scorer) Score(o model.OwnerRecord, t model.TransactionRecord) (float64, map[string]float64) {
	comps := map[string]float64{
		model.ComponentBuilding: s.building.Similarity(o.BuildingClean, t.BuildingClean),
		model.ComponentUnit:     s.unitMatch(o, t),
		model.ComponentArea:     s.areaScore(o.AreaSqm, t.AreaSqm),
	}

	score := s.weights.Building*comps[model.ComponentBuilding] +
		s.weights.Unit*comps[model.ComponentUnit] +
		s.weights.Area*comps[model.ComponentArea]
	score = math.Max(0.0, math.Min(1.0, score))
	return math.Round(score*10000) / 10000, comps
}

// Bucket maps a score onto its confidence bucket.
func (s *Scorer) Bucket(score float64) model.ConfidenceBucket {
	return model.BucketForScore(score, s.thresholds.High, s.thresholds.Medium, s.thresholds.Low)
}

// unitMatch is 1.0 only for an exact match of real unit numbers. A unit
// synthesised from a transaction id never matches, even against an owner
// record that happens to carry the same text.
func (s *Scorer) unitMatch(o model.OwnerRecord, t model.TransactionRecord) float64 {
	if t.UnitPlaceholder || o.UnitNo == "" || t.UnitNo == "" {
		return 0.0
	}
	if o.UnitNo == t.UnitNo {
		return 1.0
	}
	return 0.0
}

// areaScore decays linearly from 1.0 at equal areas to 0.0 at the decay
// percentage, clipped to [0,1]. Unknown areas score zero.
func (s *Scorer) areaScore(areaOwner, areaTxn float64) float64 {
	if areaOwner <= 0 || areaTxn <= 0 {
		return 0.0
	}
	diffPct := math.Abs(areaOwner-areaTxn) / areaOwner
	score := 1.0 - diffPct/s.areaDecayPct
	return math.Max(0.0, math.Min(1.0, score))
}
