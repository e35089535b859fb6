package models

import "time"

// ConditionClass is a coarse bucket over plant-specific condition codes.
type ConditionClass string

const (
	ClassAlarm       ConditionClass = "alarm"
	ClassStateChange ConditionClass = "state_change"
	ClassQuality     ConditionClass = "quality"
	ClassOther       ConditionClass = "other"
)

// Event is one normalized alarm/event record parsed from a plant export.
// EventTime is always UTC; rows without a resolvable timestamp are dropped
// at ingestion, never defaulted.
type Event struct {
	Source      string    `json:"source"`
	EventTime   time.Time `json:"event_time"`
	Condition   string    `json:"condition"`
	Action      string    `json:"action,omitempty"`
	Description string    `json:"description,omitempty"`
	Priority    int       `json:"priority,omitempty"`
	SourceFile  string    `json:"source_file"`
	ReportDate  time.Time `json:"report_date,omitempty"`

	// LowConfidenceTime marks rows whose timestamp was reconstructed from a
	// report-date fallback because the file preamble carried no seed instant.
	LowConfidenceTime bool `json:"low_confidence_time,omitempty"`

	RuleTags []RuleTag `json:"rule_tags,omitempty"`
}

// RuleTag annotates an event matched by a classification rule.
type RuleTag struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Severity string `json:"severity,omitempty"`
}
