package config

import (
	"fmt"
	"math"
	"strings"
)

// weightSumTolerance absorbs float decoding noise only; a weight set summing
// to 0.999 or 1.001 is a configuration mistake, not noise.
const weightSumTolerance = 1e-6

// ConfigurationError reports structural configuration problems. These are
// fatal at startup: a wrong weight or threshold silently produces a
// misleading health score, which is worse than refusing to run.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Problems, "\n  - "))
}

// Validate checks the config for:
//   - dimension weights summing to exactly 1.0
//   - grade/risk thresholds forming a total, gap-free mapping over [0,100]
//   - a non-empty unhealthy condition set and positive flood parameters
//   - plant registry entries with an id and a directory
func Validate(cfg *Config) error {
	var errs []string

	fw := &cfg.FloodWatch
	if len(fw.Plants) == 0 {
		errs = append(errs, "plants: at least one plant is required")
	}
	seen := make(map[string]struct{}, len(fw.Plants))
	for i, p := range fw.Plants {
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("plants[%d]: id is required", i))
		}
		if p.Dir == "" {
			errs = append(errs, fmt.Sprintf("plants[%d]: dir is required", i))
		}
		if _, dup := seen[p.ID]; dup {
			errs = append(errs, fmt.Sprintf("plants[%d]: duplicate plant id %q", i, p.ID))
		}
		seen[p.ID] = struct{}{}
	}

	if fw.Flood.WindowWidth <= 0 {
		errs = append(errs, "flood.window_width must be positive")
	}
	if fw.Flood.Threshold <= 0 {
		errs = append(errs, "flood.threshold must be positive")
	}
	if len(fw.Flood.UnhealthyConditions) == 0 {
		errs = append(errs, "flood.unhealthy_conditions must not be empty")
	}

	if len(fw.Health.Weights) == 0 {
		errs = append(errs, "health.weights must not be empty")
	} else {
		sum := 0.0
		for dim, w := range fw.Health.Weights {
			if w < 0 {
				errs = append(errs, fmt.Sprintf("health.weights[%s]: weight must not be negative", dim))
			}
			sum += w
		}
		if math.Abs(sum-1.0) > weightSumTolerance {
			errs = append(errs, fmt.Sprintf("health.weights must sum to 1.0, got %g", sum))
		}
	}

	validateThresholds("health.grade_thresholds", fw.Health.GradeThresholds, &errs)
	validateThresholds("health.risk_thresholds", fw.Health.RiskThresholds, &errs)

	if fw.Alerts.Enabled {
		switch fw.Alerts.Mode {
		case "", "file":
		case "kafka":
			if len(fw.Alerts.Kafka.Brokers) == 0 {
				errs = append(errs, "alerts.kafka.brokers must not be empty in kafka mode")
			}
			if fw.Alerts.Kafka.Topic == "" {
				errs = append(errs, "alerts.kafka.topic is required in kafka mode")
			}
		default:
			errs = append(errs, fmt.Sprintf("alerts.mode: unknown mode %q", fw.Alerts.Mode))
		}
	}

	if len(errs) > 0 {
		return &ConfigurationError{Problems: errs}
	}
	return nil
}

// validateThresholds requires strictly descending minimums ending at 0 so
// the mapping is total over [0,100] with no gaps or overlaps.
func validateThresholds(name string, thresholds []GradeThreshold, errs *[]string) {
	if len(thresholds) == 0 {
		*errs = append(*errs, name+" must not be empty")
		return
	}
	prev := math.Inf(1)
	for i, t := range thresholds {
		if t.Label == "" {
			*errs = append(*errs, fmt.Sprintf("%s[%d]: label is required", name, i))
		}
		if t.Min < 0 || t.Min > 100 {
			*errs = append(*errs, fmt.Sprintf("%s[%d]: min %g out of [0,100]", name, i, t.Min))
		}
		if t.Min >= prev {
			*errs = append(*errs, fmt.Sprintf("%s[%d]: min %g must be below previous threshold %g", name, i, t.Min, prev))
		}
		prev = t.Min
	}
	if thresholds[len(thresholds)-1].Min != 0 {
		*errs = append(*errs, name+": last threshold must have min 0 to cover the full score range")
	}
}
