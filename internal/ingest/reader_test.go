package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeExport(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	return path
}

const goodExport = `Alarm & Event Journal,,
Events as of 2/28/2025 11:59:59 PM,,
,,
Event Time,Source,Condition,Action,Priority
59:56.2,RX1.PUMP_A,BadPV,ACK,2
58:40,RX1.PUMP_B,HI,,1
bogus,RX1.PUMP_C,LO,,1
57:10,RX2.VALVE_7,COMMFAIL,Reset,3
`

func TestParseFileGoodExport(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "plant-a.csv", goodExport)

	res, err := ParseFile(path, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Skipped {
		t.Fatalf("did not expect a skip: %v", res.SkipErr)
	}
	if len(res.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(res.Events))
	}
	if res.UnparseableTimeRows != 1 {
		t.Fatalf("expected 1 unparseable time row, got %d", res.UnparseableTimeRows)
	}

	first := res.Events[0]
	want := time.Date(2025, 2, 28, 23, 59, 56, 200000000, time.UTC)
	if !first.EventTime.Equal(want) {
		t.Fatalf("expected first event at %v, got %v", want, first.EventTime)
	}
	if first.Source != "RX1.PUMP_A" {
		t.Fatalf("unexpected source: %q", first.Source)
	}
	if first.Condition != "BADPV" {
		t.Fatalf("condition must be uppercased, got %q", first.Condition)
	}
	if first.Action != "ACK" || first.Priority != 2 {
		t.Fatalf("unexpected action/priority: %q/%d", first.Action, first.Priority)
	}
	if first.SourceFile != "plant-a.csv" {
		t.Fatalf("unexpected source file: %q", first.SourceFile)
	}
	if first.LowConfidenceTime {
		t.Fatalf("seeded file must not produce low-confidence rows")
	}

	last := res.Events[2]
	wantLast := time.Date(2025, 2, 28, 23, 57, 10, 0, time.UTC)
	if !last.EventTime.Equal(wantLast) {
		t.Fatalf("expected last event at %v, got %v", wantLast, last.EventTime)
	}
}

func TestParseFileNoHeaderSkips(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "broken.csv", "just,some,cells\nwithout,a,header\n")

	res, err := ParseFile(path, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("expected a skip")
	}
	if !errors.Is(res.SkipErr, ErrHeaderNotFound) {
		t.Fatalf("expected ErrHeaderNotFound, got %v", res.SkipErr)
	}
}

func TestParseFileMissingRequiredColumnSkips(t *testing.T) {
	dir := t.TempDir()
	content := `Events as of 2/28/2025 11:59:59 PM,,
Event Time,Source,Action
59:56.2,RX1.PUMP_A,ACK
`
	path := writeExport(t, dir, "noschema.csv", content)

	res, err := ParseFile(path, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("expected a skip")
	}
	var schemaErr *SchemaError
	if !errors.As(res.SkipErr, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", res.SkipErr)
	}
	if schemaErr.Column != "Condition" {
		t.Fatalf("expected missing Condition column, got %q", schemaErr.Column)
	}
}

func TestIngestMergesFilesAndSurvivesBadOnes(t *testing.T) {
	dir := t.TempDir()
	a := writeExport(t, dir, "a.csv", goodExport)
	b := writeExport(t, dir, "b.csv", `Events as of 3/1/2025 6:00:00 AM,,
Event Time,Source,Condition
59:10,RX3.COMP_1,IOFAILURE
`)
	bad := writeExport(t, dir, "zz-broken.csv", "no header here\n")

	ing := &Ingestor{Workers: 2}
	events, diag := ing.Ingest(context.Background(), "plant-a", []string{a, b, bad})

	if diag.FilesTotal != 3 || diag.FilesParsed != 2 || diag.FilesSkipped != 1 {
		t.Fatalf("unexpected diagnostics: %+v", diag)
	}
	if len(diag.SkippedFiles) != 1 || diag.SkippedFiles[0] != "zz-broken.csv" {
		t.Fatalf("unexpected skipped files: %v", diag.SkippedFiles)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 merged events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].EventTime.Before(events[i-1].EventTime) {
			t.Fatalf("merged events not sorted at index %d", i)
		}
	}
	if events[len(events)-1].Source != "RX3.COMP_1" {
		t.Fatalf("expected the later file's event last, got %q", events[len(events)-1].Source)
	}
}
