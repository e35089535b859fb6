package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{FloodWatch: FloodWatchConfig{
		Plants: []PlantConfig{{ID: "plant-a", Dir: "/data/plant-a"}},
		Flood: FloodConfig{
			WindowWidth:         10 * time.Minute,
			Threshold:           10,
			UnhealthyConditions: []string{"BADPV", "COMMFAIL"},
		},
		Health: HealthConfig{
			Weights: map[string]float64{
				"data_completeness":    0.20,
				"unhealthy_ratio":      0.25,
				"flood_time":           0.25,
				"source_concentration": 0.15,
				"trend":                0.15,
			},
			GradeThresholds: []GradeThreshold{
				{Min: 90, Label: "A"}, {Min: 80, Label: "B"}, {Min: 70, Label: "C"},
				{Min: 60, Label: "D"}, {Min: 0, Label: "F"},
			},
			RiskThresholds: []GradeThreshold{
				{Min: 80, Label: "low"}, {Min: 60, Label: "moderate"},
				{Min: 40, Label: "high"}, {Min: 0, Label: "critical"},
			},
		},
	}}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsNonUnitWeightSum(t *testing.T) {
	for _, delta := range []float64{-0.001, 0.001} {
		cfg := validConfig()
		cfg.FloodWatch.Health.Weights["trend"] = 0.15 + delta
		err := Validate(cfg)
		if err == nil {
			t.Fatalf("weight sum off by %g must be rejected", delta)
		}
		if !strings.Contains(err.Error(), "must sum to 1.0") {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.FloodWatch.Plants = nil
	cfg.FloodWatch.Flood.Threshold = 0
	cfg.FloodWatch.Flood.UnhealthyConditions = nil

	err := Validate(cfg)
	confErr, ok := err.(*ConfigurationError)
	if !ok {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(confErr.Problems) != 3 {
		t.Fatalf("expected 3 collected problems, got %d: %v", len(confErr.Problems), confErr.Problems)
	}
}

func TestValidateRejectsDuplicatePlantIDs(t *testing.T) {
	cfg := validConfig()
	cfg.FloodWatch.Plants = append(cfg.FloodWatch.Plants, PlantConfig{ID: "plant-a", Dir: "/data/other"})
	if err := Validate(cfg); err == nil {
		t.Fatalf("duplicate plant ids must be rejected")
	}
}

func TestValidateThresholdOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.FloodWatch.Health.GradeThresholds = []GradeThreshold{
		{Min: 80, Label: "B"}, {Min: 90, Label: "A"}, {Min: 0, Label: "F"},
	}
	if err := Validate(cfg); err == nil {
		t.Fatalf("non-descending thresholds must be rejected")
	}

	cfg = validConfig()
	cfg.FloodWatch.Health.RiskThresholds = []GradeThreshold{
		{Min: 80, Label: "low"}, {Min: 40, Label: "high"},
	}
	if err := Validate(cfg); err == nil {
		t.Fatalf("thresholds not ending at min 0 must be rejected")
	}
}

func TestValidateKafkaAlertMode(t *testing.T) {
	cfg := validConfig()
	cfg.FloodWatch.Alerts = AlertsConfig{Enabled: true, Mode: "kafka"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("kafka mode without brokers and topic must be rejected")
	}

	cfg.FloodWatch.Alerts.Kafka = KafkaOutputConfig{Brokers: []string{"localhost:9092"}, Topic: "flood-alerts"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.FloodWatch.Alerts.Mode = "tcp"
	if err := Validate(cfg); err == nil {
		t.Fatalf("unknown alert mode must be rejected")
	}
}
