package ingest

import (
	"context"
	"sort"
	"sync"

	"floodwatch/internal/logger"
	"floodwatch/pkg/models"
)

// Ingestor turns a plant's export files into one merged event stream.
type Ingestor struct {
	Workers          int
	PreambleScanRows int
}

// Ingest parses all files concurrently and merges their events. Each file's
// slice is produced independently; the merge sorts by event time so arrival
// order never affects downstream results. File-level failures are collected
// into the diagnostics, never fatal to the batch.
func (ing *Ingestor) Ingest(ctx context.Context, plantID string, files []string) ([]models.Event, models.IngestDiagnostics) {
	diag := models.IngestDiagnostics{FilesTotal: len(files)}
	if len(files) == 0 {
		return nil, diag
	}

	workers := ing.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(files) {
		workers = len(files)
	}

	pathCh := make(chan string)
	resultCh := make(chan FileResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range pathCh {
				res, err := ParseFile(path, ing.PreambleScanRows)
				if err != nil {
					logger.Errorf("plant %s: %v", plantID, err)
					res.Skipped = true
					res.SkipErr = err
				}
				resultCh <- res
			}
		}()
	}

	go func() {
		defer close(pathCh)
		for _, path := range files {
			select {
			case pathCh <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var events []models.Event
	for res := range resultCh {
		if res.Skipped {
			diag.FilesSkipped++
			diag.SkippedFiles = append(diag.SkippedFiles, res.File)
			if res.SkipErr != nil {
				logger.Warnf("plant %s: skipping %s: %v", plantID, res.File, res.SkipErr)
			}
			continue
		}
		diag.FilesParsed++
		diag.MalformedRows += res.MalformedRows
		diag.UnparseableTimeRows += res.UnparseableTimeRows
		diag.LowConfidenceRows += res.LowConfidenceRows
		events = append(events, res.Events...)
	}
	sort.Strings(diag.SkippedFiles)

	sort.Slice(events, func(i, j int) bool {
		if !events[i].EventTime.Equal(events[j].EventTime) {
			return events[i].EventTime.Before(events[j].EventTime)
		}
		if events[i].Source != events[j].Source {
			return events[i].Source < events[j].Source
		}
		return events[i].SourceFile < events[j].SourceFile
	})

	logger.Infof("plant %s: ingested %d events from %d/%d files (skipped=%d malformed_rows=%d unparseable_time_rows=%d)",
		plantID, len(events), diag.FilesParsed, diag.FilesTotal, diag.FilesSkipped, diag.MalformedRows, diag.UnparseableTimeRows)
	return events, diag
}
