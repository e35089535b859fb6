package health

import (
	"fmt"
	"math"
	"time"

	"floodwatch/config"
	"floodwatch/pkg/models"
)

// Inputs are the aggregate counts one composite score is derived from.
// Everything here is a deterministic function of the event set; the
// calculator never looks at the wall clock except to stamp ComputedAt.
type Inputs struct {
	ExpectedDays int // reporting days the period should cover
	ObservedDays int // days that produced any events

	TotalEvents      int
	UnhealthyEvents  int
	FloodTimePercent float64

	// Unhealthy counts per source, for the concentration dimension.
	SourceCounts map[string]int

	// Average unhealthy events per day over the full period and over the
	// trailing trend window.
	BaselineDailyUnhealthy float64
	RecentDailyUnhealthy   float64
}

// Calculator combines independent health dimensions into one composite
// percentage, grade and risk level.
type Calculator struct {
	weights map[string]float64
	grades  []config.GradeThreshold
	risks   []config.GradeThreshold
}

var knownDimensions = map[string]struct{}{
	models.DimCompleteness:  {},
	models.DimUnhealthy:     {},
	models.DimFloodTime:     {},
	models.DimConcentration: {},
	models.DimTrend:         {},
}

// NewCalculator builds a calculator from health config. The weight set and
// threshold tables are re-checked here so a calculator can never exist with
// a non-unit weight sum, even when constructed outside the CLI startup path.
func NewCalculator(cfg config.HealthConfig) (*Calculator, error) {
	var problems []string
	sum := 0.0
	for dim, w := range cfg.Weights {
		if _, ok := knownDimensions[dim]; !ok {
			problems = append(problems, fmt.Sprintf("health.weights: unknown dimension %q", dim))
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		problems = append(problems, fmt.Sprintf("health.weights must sum to 1.0, got %g", sum))
	}
	if len(cfg.GradeThresholds) == 0 {
		problems = append(problems, "health.grade_thresholds must not be empty")
	}
	if len(cfg.RiskThresholds) == 0 {
		problems = append(problems, "health.risk_thresholds must not be empty")
	}
	if len(problems) > 0 {
		return nil, &config.ConfigurationError{Problems: problems}
	}

	return &Calculator{
		weights: cfg.Weights,
		grades:  cfg.GradeThresholds,
		risks:   cfg.RiskThresholds,
	}, nil
}

// Score computes the dimension sub-scores and their weighted composite.
// A dimension that cannot be computed scores its floor of 0, so missing
// data always penalizes the composite instead of silently dropping out.
func (c *Calculator) Score(in Inputs, now time.Time) models.HealthScoreResult {
	dims := map[string]float64{
		models.DimCompleteness:  completenessScore(in),
		models.DimUnhealthy:     unhealthyScore(in),
		models.DimFloodTime:     floodTimeScore(in),
		models.DimConcentration: concentrationScore(in),
		models.DimTrend:         trendScore(in),
	}

	composite := 0.0
	for dim, weight := range c.weights {
		composite += weight * dims[dim]
	}
	composite = clamp(composite)

	return models.HealthScoreResult{
		CompositeScore:  composite,
		Grade:           lookupThreshold(c.grades, composite),
		RiskLevel:       lookupThreshold(c.risks, composite),
		DimensionScores: dims,
		ComputedAt:      now.UTC(),
	}
}

func completenessScore(in Inputs) float64 {
	if in.ExpectedDays <= 0 || in.ObservedDays <= 0 {
		return 0
	}
	return clamp(float64(in.ObservedDays) / float64(in.ExpectedDays) * 100)
}

func unhealthyScore(in Inputs) float64 {
	if in.TotalEvents <= 0 {
		return 0
	}
	ratio := float64(in.UnhealthyEvents) / float64(in.TotalEvents)
	return clamp((1 - ratio) * 100)
}

func floodTimeScore(in Inputs) float64 {
	if in.TotalEvents <= 0 {
		return 0
	}
	return clamp(100 - in.FloodTimePercent)
}

// concentrationScore penalizes a small number of sources dominating the
// unhealthy events: a persistent single-point issue rather than diffuse
// noise. Zero unhealthy events means nothing dominates and scores 100.
func concentrationScore(in Inputs) float64 {
	if in.TotalEvents <= 0 {
		return 0
	}
	if in.UnhealthyEvents <= 0 {
		return 100
	}
	top := 0
	for _, count := range in.SourceCounts {
		if count > top {
			top = count
		}
	}
	share := float64(top) / float64(in.UnhealthyEvents)
	return clamp((1 - share) * 100)
}

// trendScore compares the recent unhealthy rate against the full-period
// baseline. A stable plant scores the neutral 50; improvement raises the
// score toward 100, worsening lowers it toward 0.
func trendScore(in Inputs) float64 {
	if in.TotalEvents <= 0 {
		return 0
	}
	if in.BaselineDailyUnhealthy <= 0 {
		if in.RecentDailyUnhealthy <= 0 {
			return 100
		}
		return 0
	}
	ratio := in.RecentDailyUnhealthy / in.BaselineDailyUnhealthy
	return clamp(100 - 50*ratio)
}

// lookupThreshold assumes a validated, descending, gap-free table ending at
// min 0, so every score in [0,100] maps to exactly one label.
func lookupThreshold(table []config.GradeThreshold, score float64) string {
	for _, t := range table {
		if score >= t.Min {
			return t.Label
		}
	}
	if len(table) == 0 {
		return ""
	}
	return table[len(table)-1].Label
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
