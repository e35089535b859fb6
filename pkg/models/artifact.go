package models

import "time"

// ArtifactSchemaVersion is bumped when the persisted layout changes shape.
const ArtifactSchemaVersion = 2

// Enrichment kinds recorded in PlantHealthArtifact.Enrichments.
const (
	EnrichmentEventStatistics = "event_statistics"
	EnrichmentPeakWindows     = "peak_windows"
)

// OverallMetrics are the aggregate headline numbers for one plant.
type OverallMetrics struct {
	TotalEvents      int     `json:"total_events"`
	UnhealthyEvents  int     `json:"unhealthy_events"`
	UnhealthyPercent float64 `json:"unhealthy_percent"`
	FloodWindowCount int     `json:"flood_window_count"`
	FloodTimePercent float64 `json:"flood_time_percent"`
}

// DaySummary is one day's slice of the plant timeline.
type DaySummary struct {
	Date            string `json:"date"` // YYYY-MM-DD
	TotalEvents     int    `json:"total_events"`
	UnhealthyEvents int    `json:"unhealthy_events"`
	FloodWindows    int    `json:"flood_windows"`
}

// PeakWindowDetails is per-record window detail that may be hydrated after
// the artifact is first written.
type PeakWindowDetails struct {
	TopSources []SourceCount `json:"top_sources,omitempty"`
}

// HealthRecord is one per-day flood/health record. PeakWindowDetails is nil
// until a hydration pass fills it from the raw files.
type HealthRecord struct {
	Date              string             `json:"date"` // YYYY-MM-DD
	FloodWindows      int                `json:"flood_windows"`
	PeakWindowStart   *time.Time         `json:"peak_window_start,omitempty"`
	PeakWindowEnd     *time.Time         `json:"peak_window_end,omitempty"`
	PeakHitCount      int                `json:"peak_hit_count,omitempty"`
	PeakWindowDetails *PeakWindowDetails `json:"peak_window_details,omitempty"`
}

// ActionBucketKind names one first-class operator action bucket.
type ActionBucketKind string

const (
	ActionBucketAck     ActionBucketKind = "acknowledged"
	ActionBucketResetOK ActionBucketKind = "reset_ok"
	ActionBucketShelve  ActionBucketKind = "shelve_suppress"
	ActionBucketBlank   ActionBucketKind = "blank"
	ActionBucketOther   ActionBucketKind = "other"
)

// ActionBreakdown groups operator actions into first-class buckets. Counts
// across the buckets sum exactly to the number of input events; blank
// actions are counted, never dropped.
type ActionBreakdown struct {
	Acknowledged   int           `json:"acknowledged"`
	ResetOK        int           `json:"reset_ok"`
	ShelveSuppress int           `json:"shelve_suppress"`
	Blank          int           `json:"blank"`
	Other          int           `json:"other"`
	TopRawActions  []SourceCount `json:"top_raw_actions,omitempty"`
}

// EventStatistics is the optional statistics enrichment block.
type EventStatistics struct {
	ByAction         ActionBreakdown        `json:"by_action"`
	ByConditionClass map[ConditionClass]int `json:"by_condition_class"`
	ByDay            map[string]int         `json:"by_day"`
	BySource         map[string]int         `json:"by_source"`
	ComputedAt       time.Time              `json:"computed_at"`
}

// IngestDiagnostics records what the pipeline skipped or dropped so that
// consumers can judge data completeness instead of trusting a score computed
// from silently incomplete input.
type IngestDiagnostics struct {
	FilesTotal          int      `json:"files_total"`
	FilesParsed         int      `json:"files_parsed"`
	FilesSkipped        int      `json:"files_skipped"`
	SkippedFiles        []string `json:"skipped_files,omitempty"`
	MalformedRows       int      `json:"malformed_rows,omitempty"`
	UnparseableTimeRows int      `json:"unparseable_time_rows,omitempty"`
	LowConfidenceRows   int      `json:"low_confidence_rows,omitempty"`
}

// PlantHealthArtifact is the persisted per-plant document. It is exclusively
// owned by the cache manager; other components produce fragments the manager
// merges in.
type PlantHealthArtifact struct {
	PlantID       string `json:"plant_id"`
	SchemaVersion int    `json:"schema_version"`
	ArtifactID    string `json:"artifact_id"`

	Overall              OverallMetrics                    `json:"overall"`
	Health               HealthScoreResult                 `json:"health"`
	UnhealthySourcesTopN []SourceCount                     `json:"unhealthy_sources_top_n,omitempty"`
	ConditionsByLocation map[string]map[ConditionClass]int `json:"condition_distribution_by_location,omitempty"`
	ByDay                []DaySummary                      `json:"by_day,omitempty"`
	Records              []HealthRecord                    `json:"records,omitempty"`
	EventStatistics      *EventStatistics                  `json:"event_statistics,omitempty"`
	Diagnostics          IngestDiagnostics                 `json:"diagnostics"`

	SourceFiles []string             `json:"source_files,omitempty"`
	GeneratedAt time.Time            `json:"generated_at"`
	Enrichments map[string]time.Time `json:"enrichments,omitempty"`
}
