package flood

import (
	"testing"
	"time"

	"floodwatch/pkg/models"
)

func unhealthyBurst(base time.Time, source string, n int) []models.Event {
	events := make([]models.Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, models.Event{
			Source:    source,
			EventTime: base.Add(time.Duration(i) * 30 * time.Second),
			Condition: "BADPV",
		})
	}
	return events
}

func TestDetectThresholdBoundary(t *testing.T) {
	d := NewDetector(Config{UnhealthyConditions: []string{"BADPV"}})
	base := time.Date(2025, 2, 28, 10, 10, 0, 0, time.UTC)

	if got := d.Detect(unhealthyBurst(base, "RX1.PUMP_A", 9)); len(got) != 0 {
		t.Fatalf("9 events must not flood, got %d windows", len(got))
	}

	windows := d.Detect(unhealthyBurst(base, "RX1.PUMP_A", 10))
	if len(windows) != 1 {
		t.Fatalf("10 events must produce exactly 1 window, got %d", len(windows))
	}
	w := windows[0]
	if !w.WindowStart.Equal(base) {
		t.Fatalf("expected window start %v, got %v", base, w.WindowStart)
	}
	if !w.WindowEnd.Equal(base.Add(10 * time.Minute)) {
		t.Fatalf("expected window end %v, got %v", base.Add(10*time.Minute), w.WindowEnd)
	}
	if w.HitCount != 10 || !w.IsFlood {
		t.Fatalf("unexpected window: %+v", w)
	}
	if len(w.ContributingSources) != 1 || w.ContributingSources[0].Count != 10 {
		t.Fatalf("unexpected contributing sources: %+v", w.ContributingSources)
	}
}

func TestDetectIgnoresHealthyEvents(t *testing.T) {
	d := NewDetector(Config{UnhealthyConditions: []string{"BADPV"}})
	base := time.Date(2025, 2, 28, 10, 10, 0, 0, time.UTC)

	events := unhealthyBurst(base, "RX1.PUMP_A", 9)
	for i := 0; i < 20; i++ {
		events = append(events, models.Event{
			Source:    "RX1.PUMP_B",
			EventTime: base.Add(time.Duration(i) * 10 * time.Second),
			Condition: "RTN",
		})
	}

	if got := d.Detect(events); len(got) != 0 {
		t.Fatalf("healthy events must not count toward the threshold, got %d windows", len(got))
	}
}

func TestDetectIndependentOfInputOrder(t *testing.T) {
	d := NewDetector(Config{UnhealthyConditions: []string{"BADPV"}})
	base := time.Date(2025, 2, 28, 10, 10, 0, 0, time.UTC)

	events := unhealthyBurst(base, "RX1.PUMP_A", 12)
	reversed := make([]models.Event, len(events))
	for i, e := range events {
		reversed[len(events)-1-i] = e
	}

	a := d.Detect(events)
	b := d.Detect(reversed)
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected 1 window either way, got %d and %d", len(a), len(b))
	}
	if !a[0].WindowStart.Equal(b[0].WindowStart) || a[0].HitCount != b[0].HitCount {
		t.Fatalf("window differs with input order: %+v vs %+v", a[0], b[0])
	}
}

func TestDetectRuleTaggedEventsAreUnhealthy(t *testing.T) {
	d := NewDetector(Config{UnhealthyConditions: []string{"BADPV"}})
	event := models.Event{
		Source:    "RX1.PUMP_A",
		Condition: "HI",
		RuleTags:  []models.RuleTag{{ID: "r1", Name: "chattering-tag"}},
	}
	if !d.IsUnhealthy(event) {
		t.Fatalf("rule-tagged event must count as unhealthy")
	}
	event.RuleTags = nil
	if d.IsUnhealthy(event) {
		t.Fatalf("untagged HI event must not count as unhealthy")
	}
}

func TestDetectWindowsSorted(t *testing.T) {
	d := NewDetector(Config{UnhealthyConditions: []string{"BADPV"}})
	early := time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC)
	late := time.Date(2025, 2, 28, 14, 30, 0, 0, time.UTC)

	events := append(unhealthyBurst(late, "RX2.VALVE_7", 11), unhealthyBurst(early, "RX1.PUMP_A", 10)...)
	windows := d.Detect(events)
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if !windows[0].WindowStart.Equal(early) || !windows[1].WindowStart.Equal(late) {
		t.Fatalf("windows not sorted: %v then %v", windows[0].WindowStart, windows[1].WindowStart)
	}
}

func TestRankSourcesDeterministicTies(t *testing.T) {
	ranked := RankSources(map[string]int{
		"RX1.PUMP_B":  4,
		"RX1.PUMP_A":  4,
		"RX2.VALVE_7": 9,
		"RX3.COMP_1":  1,
	}, 3)

	if len(ranked) != 3 {
		t.Fatalf("expected top 3, got %d", len(ranked))
	}
	if ranked[0].Source != "RX2.VALVE_7" {
		t.Fatalf("expected highest count first, got %+v", ranked[0])
	}
	if ranked[1].Source != "RX1.PUMP_A" || ranked[2].Source != "RX1.PUMP_B" {
		t.Fatalf("ties must break by name ascending, got %+v", ranked[1:])
	}
}

func TestWindowSources(t *testing.T) {
	d := NewDetector(Config{UnhealthyConditions: []string{"BADPV"}})
	base := time.Date(2025, 2, 28, 10, 10, 0, 0, time.UTC)

	events := append(unhealthyBurst(base, "RX1.PUMP_A", 6), unhealthyBurst(base.Add(time.Minute), "RX2.VALVE_7", 4)...)
	// An event in the next window must not leak in.
	events = append(events, models.Event{Source: "RX9.OUT", EventTime: base.Add(10 * time.Minute), Condition: "BADPV"})

	ranked := d.WindowSources(events, base, 5)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(ranked))
	}
	if ranked[0].Source != "RX1.PUMP_A" || ranked[0].Count != 6 {
		t.Fatalf("unexpected top source: %+v", ranked[0])
	}
}

func TestPercentTimeInFlood(t *testing.T) {
	width := 10 * time.Minute
	if got := PercentTimeInFlood(0, width, time.Hour); got != 0 {
		t.Fatalf("no windows must be 0%%, got %g", got)
	}
	if got := PercentTimeInFlood(3, width, time.Hour); got != 50 {
		t.Fatalf("3 of 6 windows must be 50%%, got %g", got)
	}
	if got := PercentTimeInFlood(10, width, 30*time.Minute); got != 100 {
		t.Fatalf("flood share must clamp at 100%%, got %g", got)
	}
	if got := PercentTimeInFlood(1, width, 0); got != 0 {
		t.Fatalf("zero span must be 0%%, got %g", got)
	}
}
