package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"floodwatch/internal/flood"
	"floodwatch/internal/health"
	"floodwatch/internal/ingest"
	"floodwatch/internal/logger"
	"floodwatch/internal/metrics"
	"floodwatch/internal/rules"
	"floodwatch/internal/stats"
	"floodwatch/internal/store"
	"floodwatch/pkg/models"
)

// Builder owns the PlantHealthArtifact lifecycle: full builds, targeted
// enrichments, and hydration of per-window detail. All artifact mutation
// funnels through here under the per-plant write lock.
type Builder struct {
	Ingestor   *ingest.Ingestor
	Detector   *flood.Detector
	Calculator *health.Calculator
	Aggregator *stats.Aggregator
	Engine     rules.Engine
	Store      *store.FileStore
	Locker     store.Locker

	Alerts  AlertWriter         // optional
	History *store.HistoryStore // optional

	TopSources      int
	TrendWindowDays int

	now func() time.Time
}

// Now returns the builder's clock, defaulting to time.Now.
func (b *Builder) Now() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

// Build runs the full pipeline for one plant and commits a fresh artifact.
// Safe to run from scratch at any time: identical input files produce an
// identical artifact apart from provenance fields.
func (b *Builder) Build(ctx context.Context, plantID string, files []string) (*models.PlantHealthArtifact, error) {
	release, err := b.Locker.Acquire(ctx, plantID)
	if err != nil {
		metrics.WriteConflicts.Inc()
		return nil, err
	}
	defer release()

	started := b.Now()

	events, diag := b.Ingestor.Ingest(ctx, plantID, files)
	b.applyRules(events)

	windows := b.Detector.Detect(events)
	metrics.FloodWindows.WithLabelValues(plantID).Add(float64(len(windows)))

	artifact := b.assemble(plantID, files, events, windows, diag)

	if err := b.Store.Save(plantID, artifact); err != nil {
		return nil, err
	}
	metrics.ArtifactWrites.WithLabelValues(plantID, "build").Inc()
	metrics.CompositeScore.WithLabelValues(plantID).Set(artifact.Health.CompositeScore)
	metrics.BuildDuration.Observe(time.Since(started).Seconds())

	b.emitAlerts(plantID, windows)
	b.recordHistory(ctx, artifact)

	logger.Infof("plant %s: artifact built (events=%d flood_windows=%d score=%.1f grade=%s)",
		plantID, artifact.Overall.TotalEvents, artifact.Overall.FloodWindowCount,
		artifact.Health.CompositeScore, artifact.Health.Grade)
	return artifact, nil
}

// Augment adds one named enrichment to an existing artifact without
// touching unrelated fields. The store backs up the prior document before
// the overwrite.
func (b *Builder) Augment(ctx context.Context, plantID string, files []string, kind string) error {
	release, err := b.Locker.Acquire(ctx, plantID)
	if err != nil {
		metrics.WriteConflicts.Inc()
		return err
	}
	defer release()

	artifact, err := b.Store.Load(plantID)
	if err != nil {
		return err
	}

	switch kind {
	case models.EnrichmentEventStatistics:
		events, _ := b.Ingestor.Ingest(ctx, plantID, files)
		b.applyRules(events)
		statistics := b.Aggregator.Aggregate(events, b.Now())
		artifact.EventStatistics = &statistics
	default:
		return fmt.Errorf("unknown enrichment kind %q", kind)
	}

	if artifact.Enrichments == nil {
		artifact.Enrichments = make(map[string]time.Time)
	}
	artifact.Enrichments[kind] = b.Now().UTC()

	if err := b.Store.Save(plantID, artifact); err != nil {
		return err
	}
	metrics.ArtifactWrites.WithLabelValues(plantID, "augment").Inc()
	logger.Infof("plant %s: artifact augmented with %s", plantID, kind)
	return nil
}

// Hydrate fills missing peak_window_details.top_sources on each record by
// recomputing just that window's ranking from the raw files. Records that
// already carry non-empty detail are left untouched unless force is set, so
// enrichment is monotonic.
func (b *Builder) Hydrate(ctx context.Context, plantID string, files []string, topN int, force bool) error {
	release, err := b.Locker.Acquire(ctx, plantID)
	if err != nil {
		metrics.WriteConflicts.Inc()
		return err
	}
	defer release()

	artifact, err := b.Store.Load(plantID)
	if err != nil {
		return err
	}
	if topN <= 0 {
		topN = b.topSources()
	}

	var events []models.Event
	loaded := false
	hydrated := 0
	for i := range artifact.Records {
		record := &artifact.Records[i]
		if record.PeakWindowStart == nil {
			continue
		}
		if !force && record.PeakWindowDetails != nil && len(record.PeakWindowDetails.TopSources) > 0 {
			continue
		}
		if !loaded {
			events, _ = b.Ingestor.Ingest(ctx, plantID, files)
			b.applyRules(events)
			loaded = true
		}
		record.PeakWindowDetails = &models.PeakWindowDetails{
			TopSources: b.Detector.WindowSources(events, *record.PeakWindowStart, topN),
		}
		hydrated++
	}

	if hydrated == 0 {
		logger.Infof("plant %s: nothing to hydrate", plantID)
		return nil
	}

	if artifact.Enrichments == nil {
		artifact.Enrichments = make(map[string]time.Time)
	}
	artifact.Enrichments[models.EnrichmentPeakWindows] = b.Now().UTC()

	if err := b.Store.Save(plantID, artifact); err != nil {
		return err
	}
	metrics.ArtifactWrites.WithLabelValues(plantID, "hydrate").Inc()
	logger.Infof("plant %s: hydrated %d peak window records", plantID, hydrated)
	return nil
}

func (b *Builder) applyRules(events []models.Event) {
	if b.Engine == nil {
		return
	}
	for i := range events {
		events[i].RuleTags = b.Engine.Apply(&events[i])
	}
}

func (b *Builder) topSources() int {
	if b.TopSources > 0 {
		return b.TopSources
	}
	return flood.DefaultTopSources
}

// assemble merges the pipeline fragments into one artifact document.
func (b *Builder) assemble(plantID string, files []string, events []models.Event, windows []models.FloodWindow, diag models.IngestDiagnostics) *models.PlantHealthArtifact {
	unhealthyBySource := make(map[string]int)
	unhealthyTotal := 0
	dayTotals := make(map[string]int)
	dayUnhealthy := make(map[string]int)

	for _, event := range events {
		day := event.EventTime.UTC().Format("2006-01-02")
		dayTotals[day]++
		if b.Detector.IsUnhealthy(event) {
			unhealthyTotal++
			unhealthyBySource[event.Source]++
			dayUnhealthy[day]++
		}
	}

	span := flood.Span(events)
	floodPct := flood.PercentTimeInFlood(len(windows), b.Detector.WindowWidth(), span)

	overall := models.OverallMetrics{
		TotalEvents:      len(events),
		UnhealthyEvents:  unhealthyTotal,
		FloodWindowCount: len(windows),
		FloodTimePercent: floodPct,
	}
	if len(events) > 0 {
		overall.UnhealthyPercent = float64(unhealthyTotal) / float64(len(events)) * 100
	}

	byDay, records := b.buildDaySlices(dayTotals, dayUnhealthy, windows)
	score := b.Calculator.Score(b.healthInputs(events, overall, unhealthyBySource, span), b.Now())

	return &models.PlantHealthArtifact{
		PlantID:              plantID,
		SchemaVersion:        models.ArtifactSchemaVersion,
		ArtifactID:           uuid.NewString(),
		Overall:              overall,
		Health:               score,
		UnhealthySourcesTopN: flood.RankSources(unhealthyBySource, b.topSources()),
		ConditionsByLocation: stats.ConditionsByLocation(events),
		ByDay:                byDay,
		Records:              records,
		Diagnostics:          diag,
		SourceFiles:          append([]string(nil), files...),
		GeneratedAt:          b.Now().UTC(),
		Enrichments:          map[string]time.Time{},
	}
}

func (b *Builder) buildDaySlices(dayTotals, dayUnhealthy map[string]int, windows []models.FloodWindow) ([]models.DaySummary, []models.HealthRecord) {
	floodsByDay := make(map[string][]models.FloodWindow)
	for _, w := range windows {
		day := w.WindowStart.UTC().Format("2006-01-02")
		floodsByDay[day] = append(floodsByDay[day], w)
	}

	days := make([]string, 0, len(dayTotals))
	for day := range dayTotals {
		days = append(days, day)
	}
	sort.Strings(days)

	byDay := make([]models.DaySummary, 0, len(days))
	records := make([]models.HealthRecord, 0, len(days))
	for _, day := range days {
		floods := floodsByDay[day]
		byDay = append(byDay, models.DaySummary{
			Date:            day,
			TotalEvents:     dayTotals[day],
			UnhealthyEvents: dayUnhealthy[day],
			FloodWindows:    len(floods),
		})

		record := models.HealthRecord{Date: day, FloodWindows: len(floods)}
		if peak := peakWindow(floods); peak != nil {
			start := peak.WindowStart
			end := peak.WindowEnd
			record.PeakWindowStart = &start
			record.PeakWindowEnd = &end
			record.PeakHitCount = peak.HitCount
		}
		records = append(records, record)
	}
	return byDay, records
}

// peakWindow picks the densest window of a day; ties go to the earliest.
func peakWindow(windows []models.FloodWindow) *models.FloodWindow {
	var peak *models.FloodWindow
	for i := range windows {
		if peak == nil || windows[i].HitCount > peak.HitCount {
			peak = &windows[i]
		}
	}
	return peak
}

func (b *Builder) healthInputs(events []models.Event, overall models.OverallMetrics, unhealthyBySource map[string]int, span time.Duration) health.Inputs {
	in := health.Inputs{
		TotalEvents:      overall.TotalEvents,
		UnhealthyEvents:  overall.UnhealthyEvents,
		FloodTimePercent: overall.FloodTimePercent,
		SourceCounts:     unhealthyBySource,
	}
	if len(events) == 0 {
		return in
	}

	first, last := events[0].EventTime, events[0].EventTime
	observed := make(map[string]struct{})
	for _, event := range events {
		if event.EventTime.Before(first) {
			first = event.EventTime
		}
		if event.EventTime.After(last) {
			last = event.EventTime
		}
		observed[event.EventTime.UTC().Format("2006-01-02")] = struct{}{}
	}

	in.ExpectedDays = int(last.Truncate(24*time.Hour).Sub(first.Truncate(24*time.Hour))/(24*time.Hour)) + 1
	in.ObservedDays = len(observed)

	trendDays := b.TrendWindowDays
	if trendDays <= 0 {
		trendDays = 3
	}
	if trendDays > in.ExpectedDays {
		trendDays = in.ExpectedDays
	}
	cutoff := last.Add(-time.Duration(trendDays) * 24 * time.Hour)
	recentUnhealthy := 0
	for _, event := range events {
		if !b.Detector.IsUnhealthy(event) {
			continue
		}
		if event.EventTime.After(cutoff) {
			recentUnhealthy++
		}
	}

	in.BaselineDailyUnhealthy = float64(overall.UnhealthyEvents) / float64(in.ExpectedDays)
	in.RecentDailyUnhealthy = float64(recentUnhealthy) / float64(trendDays)
	return in
}

func (b *Builder) emitAlerts(plantID string, windows []models.FloodWindow) {
	if b.Alerts == nil || len(windows) == 0 {
		return
	}
	alerts := make([]*models.FloodAlert, 0, len(windows))
	for _, w := range windows {
		alerts = append(alerts, &models.FloodAlert{
			AlertID:     uuid.NewString(),
			PlantID:     plantID,
			WindowStart: w.WindowStart,
			WindowEnd:   w.WindowEnd,
			HitCount:    w.HitCount,
			Threshold:   b.Detector.Threshold(),
			TopSources:  w.ContributingSources,
		})
	}
	if err := b.Alerts.WriteAlerts(alerts); err != nil {
		logger.Errorf("plant %s: failed to write flood alerts: %v", plantID, err)
	}
}

func (b *Builder) recordHistory(ctx context.Context, artifact *models.PlantHealthArtifact) {
	if b.History == nil {
		return
	}
	if err := b.History.RecordRun(ctx, artifact); err != nil {
		logger.Errorf("plant %s: failed to record run history: %v", artifact.PlantID, err)
	}
}
