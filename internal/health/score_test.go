package health

import (
	"errors"
	"testing"
	"time"

	"floodwatch/config"
	"floodwatch/pkg/models"
)

func calcConfig() config.HealthConfig {
	return config.HealthConfig{
		Weights: map[string]float64{
			models.DimCompleteness:  0.20,
			models.DimUnhealthy:     0.25,
			models.DimFloodTime:     0.25,
			models.DimConcentration: 0.15,
			models.DimTrend:         0.15,
		},
		GradeThresholds: []config.GradeThreshold{
			{Min: 90, Label: "A"}, {Min: 80, Label: "B"}, {Min: 70, Label: "C"},
			{Min: 60, Label: "D"}, {Min: 0, Label: "F"},
		},
		RiskThresholds: []config.GradeThreshold{
			{Min: 80, Label: models.RiskLow}, {Min: 60, Label: models.RiskModerate},
			{Min: 40, Label: models.RiskHigh}, {Min: 0, Label: models.RiskCritical},
		},
	}
}

func TestNewCalculatorRejectsNonUnitWeights(t *testing.T) {
	for _, sum := range []float64{0.999, 1.001} {
		cfg := calcConfig()
		cfg.Weights = map[string]float64{
			models.DimCompleteness: sum - 0.5,
			models.DimUnhealthy:    0.5,
		}
		_, err := NewCalculator(cfg)
		var confErr *config.ConfigurationError
		if !errors.As(err, &confErr) {
			t.Fatalf("weight sum %g: expected ConfigurationError, got %v", sum, err)
		}
	}

	if _, err := NewCalculator(calcConfig()); err != nil {
		t.Fatalf("unit weight sum must be accepted: %v", err)
	}
}

func TestNewCalculatorRejectsUnknownDimension(t *testing.T) {
	cfg := calcConfig()
	cfg.Weights = map[string]float64{"made_up": 1.0}
	if _, err := NewCalculator(cfg); err == nil {
		t.Fatalf("expected an error for an unknown dimension")
	}
}

func TestScorePerfectPlant(t *testing.T) {
	c, err := NewCalculator(calcConfig())
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	got := c.Score(Inputs{
		ExpectedDays:     7,
		ObservedDays:     7,
		TotalEvents:      1000,
		UnhealthyEvents:  0,
		FloodTimePercent: 0,
	}, now)

	if got.CompositeScore != 100 {
		t.Fatalf("expected composite 100, got %g (dims %v)", got.CompositeScore, got.DimensionScores)
	}
	if got.Grade != "A" || got.RiskLevel != models.RiskLow {
		t.Fatalf("expected grade A / low risk, got %s / %s", got.Grade, got.RiskLevel)
	}
	if !got.ComputedAt.Equal(now) {
		t.Fatalf("expected ComputedAt %v, got %v", now, got.ComputedAt)
	}
}

func TestScoreEmptyPlantFloorsEveryDimension(t *testing.T) {
	c, err := NewCalculator(calcConfig())
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}

	got := c.Score(Inputs{}, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	if got.CompositeScore != 0 {
		t.Fatalf("expected composite 0 with no data, got %g", got.CompositeScore)
	}
	if got.Grade != "F" || got.RiskLevel != models.RiskCritical {
		t.Fatalf("expected grade F / critical risk, got %s / %s", got.Grade, got.RiskLevel)
	}
	for dim, score := range got.DimensionScores {
		if score != 0 {
			t.Fatalf("dimension %s must floor at 0, got %g", dim, score)
		}
	}
}

func TestConcentrationScore(t *testing.T) {
	// One source owning every unhealthy event is the worst case.
	if got := concentrationScore(Inputs{
		TotalEvents:     100,
		UnhealthyEvents: 40,
		SourceCounts:    map[string]int{"RX1.PUMP_A": 40},
	}); got != 0 {
		t.Fatalf("single dominating source must score 0, got %g", got)
	}

	if got := concentrationScore(Inputs{
		TotalEvents:     100,
		UnhealthyEvents: 40,
		SourceCounts:    map[string]int{"RX1.PUMP_A": 10, "RX1.PUMP_B": 10, "RX2.VALVE_7": 10, "RX3.COMP_1": 10},
	}); got != 75 {
		t.Fatalf("even spread over 4 sources must score 75, got %g", got)
	}

	// No unhealthy events means nothing dominates.
	if got := concentrationScore(Inputs{TotalEvents: 100}); got != 100 {
		t.Fatalf("zero unhealthy events must score 100, got %g", got)
	}
}

func TestTrendScore(t *testing.T) {
	base := Inputs{TotalEvents: 100}

	in := base
	in.BaselineDailyUnhealthy = 10
	in.RecentDailyUnhealthy = 10
	if got := trendScore(in); got != 50 {
		t.Fatalf("stable rate must score the neutral 50, got %g", got)
	}

	in.RecentDailyUnhealthy = 0
	if got := trendScore(in); got != 100 {
		t.Fatalf("vanished unhealthy rate must score 100, got %g", got)
	}

	in.RecentDailyUnhealthy = 30
	if got := trendScore(in); got != 0 {
		t.Fatalf("tripled rate must clamp at 0, got %g", got)
	}

	in = base
	in.RecentDailyUnhealthy = 5
	if got := trendScore(in); got != 0 {
		t.Fatalf("new unhealthy events against a zero baseline must score 0, got %g", got)
	}
}

func TestLookupThresholdBoundaries(t *testing.T) {
	c, err := NewCalculator(calcConfig())
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}

	cases := []struct {
		score float64
		grade string
	}{
		{score: 90, grade: "A"},
		{score: 89.9, grade: "B"},
		{score: 60, grade: "D"},
		{score: 0, grade: "F"},
	}
	for _, tc := range cases {
		if got := lookupThreshold(c.grades, tc.score); got != tc.grade {
			t.Fatalf("score %g: expected grade %s, got %s", tc.score, tc.grade, got)
		}
	}
}
