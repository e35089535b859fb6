package ingest

import (
	"errors"
	"testing"
	"time"
)

func TestDetectMetadataFindsHeaderAndFilterSeed(t *testing.T) {
	records := [][]string{
		{"Alarm & Event Journal", "", ""},
		{"Events as of 2/28/2025 11:59:59 PM", "", ""},
		{"Report generated 3/1/2025 8:15:00 AM", "", ""},
		{"", "", ""},
		{"Event Time", "Source", "Condition", "Action", "Priority"},
		{"59:56.2", "RX1.PUMP_A", "BADPV", "ACK", "2"},
	}

	seed, err := DetectMetadata(records, "export.csv", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seed.SkipRows != 4 {
		t.Fatalf("expected header at row 4, got %d", seed.SkipRows)
	}
	if !seed.HasSeed {
		t.Fatalf("expected a seed instant")
	}
	want := time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC)
	if !seed.SeedInstant.Equal(want) {
		t.Fatalf("expected filter instant %v to outrank the generated instant, got %v", want, seed.SeedInstant)
	}
	wantReport := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !seed.ReportDate.Equal(wantReport) {
		t.Fatalf("expected report date %v, got %v", wantReport, seed.ReportDate)
	}
}

func TestDetectMetadataReportInstantWhenNoFilterLine(t *testing.T) {
	records := [][]string{
		{"Report generated 3/1/2025 8:15:00 AM"},
		{"Event Time", "Source", "Condition"},
	}

	seed, err := DetectMetadata(records, "export.csv", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seed.HasSeed {
		t.Fatalf("expected the generated instant as fallback seed")
	}
	want := time.Date(2025, 3, 1, 8, 15, 0, 0, time.UTC)
	if !seed.SeedInstant.Equal(want) {
		t.Fatalf("expected seed %v, got %v", want, seed.SeedInstant)
	}
}

func TestDetectMetadataMissingHeader(t *testing.T) {
	records := [][]string{
		{"Alarm & Event Journal"},
		{"Events as of 2/28/2025 11:59:59 PM"},
		{"59:56.2", "RX1.PUMP_A", "BADPV"},
	}

	_, err := DetectMetadata(records, "export.csv", 0)
	if !errors.Is(err, ErrHeaderNotFound) {
		t.Fatalf("expected ErrHeaderNotFound, got %v", err)
	}
}

func TestDetectMetadataHeaderAliases(t *testing.T) {
	records := [][]string{
		{"Time", "Tag Name", "Condition Name"},
		{"10:00:00", "RX1.PUMP_A", "HI"},
	}

	seed, err := DetectMetadata(records, "export.csv", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seed.SkipRows != 0 {
		t.Fatalf("expected aliased header at row 0, got %d", seed.SkipRows)
	}
}

func TestDetectMetadataKeepsFirstFilterInstantOnConflict(t *testing.T) {
	records := [][]string{
		{"Events as of 2/28/2025 11:59:59 PM"},
		{"Filter applied before 2/27/2025 6:00:00 AM"},
		{"Event Time", "Source", "Condition"},
	}

	seed, err := DetectMetadata(records, "export.csv", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC)
	if !seed.SeedInstant.Equal(want) {
		t.Fatalf("expected first filter instant %v, got %v", want, seed.SeedInstant)
	}
}

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"Event  Time ": "event time",
		"SOURCE":       "source",
		" Tag\tName":   "tag name",
	}
	for in, want := range cases {
		if got := NormalizeHeader(in); got != want {
			t.Fatalf("NormalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}
