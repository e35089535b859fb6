package flood

import (
	"sort"
	"strings"
	"time"

	"floodwatch/pkg/models"
)

// Defaults follow ISA 18.2 / EEMUA 191: ten or more alarm events inside any
// ten-minute window indicates operator alarm overload.
const (
	DefaultWindowWidth = 10 * time.Minute
	DefaultThreshold   = 10
	DefaultTopSources  = 5
)

// Config controls flood detection behavior.
type Config struct {
	WindowWidth         time.Duration
	Threshold           int
	UnhealthyConditions []string
	TopSources          int
}

// Detector buckets unhealthy events into fixed-width windows and flags the
// windows whose hit count meets the flood threshold.
type Detector struct {
	width     time.Duration
	threshold int
	unhealthy map[string]struct{}
	topN      int
}

// NewDetector creates a detector. Zero config fields get defaults.
func NewDetector(cfg Config) *Detector {
	if cfg.WindowWidth <= 0 {
		cfg.WindowWidth = DefaultWindowWidth
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.TopSources <= 0 {
		cfg.TopSources = DefaultTopSources
	}
	set := make(map[string]struct{}, len(cfg.UnhealthyConditions))
	for _, cond := range cfg.UnhealthyConditions {
		set[strings.ToUpper(strings.TrimSpace(cond))] = struct{}{}
	}
	return &Detector{
		width:     cfg.WindowWidth,
		threshold: cfg.Threshold,
		unhealthy: set,
		topN:      cfg.TopSources,
	}
}

// WindowWidth returns the configured bucket width.
func (d *Detector) WindowWidth() time.Duration {
	return d.width
}

// Threshold returns the configured flood threshold.
func (d *Detector) Threshold() int {
	return d.threshold
}

// IsUnhealthy reports whether an event counts toward flood detection:
// its condition code is in the configured unhealthy set, or a classification
// rule tagged it.
func (d *Detector) IsUnhealthy(event models.Event) bool {
	if _, ok := d.unhealthy[event.Condition]; ok {
		return true
	}
	return len(event.RuleTags) > 0
}

type bucket struct {
	count   int
	lowConf int
	sources map[string]int
}

// Detect produces the sparse, sorted sequence of flood windows for an event
// set. Windows are aligned by flooring event time to the window width; only
// windows meeting the threshold are materialized. The result is a pure
// function of the event set, independent of input order.
func (d *Detector) Detect(events []models.Event) []models.FloodWindow {
	buckets := make(map[time.Time]*bucket)
	for _, event := range events {
		if !d.IsUnhealthy(event) {
			continue
		}
		start := event.EventTime.Truncate(d.width)
		b := buckets[start]
		if b == nil {
			b = &bucket{sources: make(map[string]int)}
			buckets[start] = b
		}
		b.count++
		b.sources[event.Source]++
		if event.LowConfidenceTime {
			b.lowConf++
		}
	}

	windows := make([]models.FloodWindow, 0, len(buckets))
	for start, b := range buckets {
		if b.count < d.threshold {
			continue
		}
		windows = append(windows, models.FloodWindow{
			WindowStart:         start,
			WindowEnd:           start.Add(d.width),
			HitCount:            b.count,
			ContributingSources: RankSources(b.sources, d.topN),
			IsFlood:             true,
			LowConfidenceEvents: b.lowConf,
		})
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].WindowStart.Before(windows[j].WindowStart)
	})
	return windows
}

// WindowSources recomputes the full source ranking for a single window,
// used by hydration to fill per-record detail without a full rebuild.
func (d *Detector) WindowSources(events []models.Event, windowStart time.Time, topN int) []models.SourceCount {
	sources := make(map[string]int)
	windowEnd := windowStart.Add(d.width)
	for _, event := range events {
		if !d.IsUnhealthy(event) {
			continue
		}
		if event.EventTime.Before(windowStart) || !event.EventTime.Before(windowEnd) {
			continue
		}
		sources[event.Source]++
	}
	return RankSources(sources, topN)
}

// RankSources orders sources by count descending, ties broken by source
// name ascending for determinism, keeping at most topN entries.
func RankSources(sources map[string]int, topN int) []models.SourceCount {
	ranked := make([]models.SourceCount, 0, len(sources))
	for source, count := range sources {
		ranked = append(ranked, models.SourceCount{Source: source, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Source < ranked[j].Source
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// PercentTimeInFlood is the share of the observed event span covered by
// materialized flood windows, clamped to [0,100].
func PercentTimeInFlood(windowCount int, width time.Duration, span time.Duration) float64 {
	if windowCount <= 0 || span <= 0 {
		return 0
	}
	pct := float64(windowCount) * width.Seconds() / span.Seconds() * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Span is the duration between the earliest and latest event times.
func Span(events []models.Event) time.Duration {
	if len(events) == 0 {
		return 0
	}
	min, max := events[0].EventTime, events[0].EventTime
	for _, event := range events[1:] {
		if event.EventTime.Before(min) {
			min = event.EventTime
		}
		if event.EventTime.After(max) {
			max = event.EventTime
		}
	}
	return max.Sub(min)
}
