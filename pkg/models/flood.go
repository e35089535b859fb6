package models

import "time"

// SourceCount is one entry of a source ranking.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// FloodWindow is a fixed-width time bucket whose unhealthy-event count met
// the flood threshold. Windows are aligned to a floor of the event time and
// never overlap; only qualifying windows are materialized.
type FloodWindow struct {
	WindowStart         time.Time     `json:"window_start"`
	WindowEnd           time.Time     `json:"window_end"`
	HitCount            int           `json:"hit_count"`
	ContributingSources []SourceCount `json:"contributing_sources,omitempty"`
	IsFlood             bool          `json:"is_flood"`
	LowConfidenceEvents int           `json:"low_confidence_events,omitempty"`
}

// FloodAlert is the side-output record emitted for a materialized flood window.
type FloodAlert struct {
	AlertID     string        `json:"alert_id"`
	PlantID     string        `json:"plant_id"`
	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
	HitCount    int           `json:"hit_count"`
	Threshold   int           `json:"threshold"`
	TopSources  []SourceCount `json:"top_sources,omitempty"`
}
