package models

import "time"

// Risk levels, ordered from best to worst.
const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Health dimension names. Every HealthScoreResult carries a sub-score for
// each of these; a dimension that cannot be computed scores 0 so missing
// data always penalizes the composite.
const (
	DimCompleteness  = "data_completeness"
	DimUnhealthy     = "unhealthy_ratio"
	DimFloodTime     = "flood_time"
	DimConcentration = "source_concentration"
	DimTrend         = "trend"
)

// HealthScoreResult is the composite plant health score. The composite is a
// deterministic weighted sum of DimensionScores; ComputedAt is the only
// wall-clock dependent field.
type HealthScoreResult struct {
	CompositeScore  float64            `json:"composite_score"`
	Grade           string             `json:"grade"`
	RiskLevel       string             `json:"risk_level"`
	DimensionScores map[string]float64 `json:"dimension_scores"`
	ComputedAt      time.Time          `json:"computed_at"`
}
