package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"floodwatch/internal/logger"
	"floodwatch/internal/metrics"
	"floodwatch/pkg/models"
)

// FileResult is the explicit per-file outcome: either a slice of events plus
// row-level diagnostics, or a skip with its reason. No control flow rides on
// panics or unchecked propagation.
type FileResult struct {
	File    string
	Events  []models.Event
	Skipped bool
	SkipErr error // ErrHeaderNotFound or *SchemaError when Skipped

	MalformedRows       int
	UnparseableTimeRows int
	LowConfidenceRows   int
}

// ParseFile reads one export file into normalized events. File-level
// problems (no header, missing required column) are reported as a skip
// inside the result, not as an error; the returned error is reserved for
// I/O failures.
func ParseFile(path string, maxScanRows int) (FileResult, error) {
	res := FileResult{File: filepath.Base(path)}

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("open export %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A torn line in the preamble or body; keep the rows around it.
			res.MalformedRows++
			continue
		}
		records = append(records, record)
	}

	seed, err := DetectMetadata(records, res.File, maxScanRows)
	if err != nil {
		res.Skipped = true
		res.SkipErr = err
		metrics.FilesSkipped.WithLabelValues("no_header").Inc()
		return res, nil
	}

	cols, err := resolveColumns(seed.HeaderRow, res.File)
	if err != nil {
		res.Skipped = true
		res.SkipErr = err
		metrics.FilesSkipped.WithLabelValues("schema").Inc()
		return res, nil
	}

	recon := NewReconstructor(seed)
	if !seed.HasSeed {
		logger.Warnf("no seed instant in %s preamble; using report-date fallback", res.File)
	}

	for _, record := range records[seed.SkipRows+1:] {
		if cols.maxIndex() >= len(record) {
			res.MalformedRows++
			metrics.RowsDropped.WithLabelValues("malformed").Inc()
			continue
		}

		ts, ok := recon.Resolve(record[cols.eventTime])
		if !ok {
			res.UnparseableTimeRows++
			metrics.RowsDropped.WithLabelValues("unparseable_time").Inc()
			continue
		}

		event := models.Event{
			Source:            strings.TrimSpace(record[cols.source]),
			EventTime:         ts,
			Condition:         strings.ToUpper(strings.TrimSpace(record[cols.condition])),
			SourceFile:        res.File,
			ReportDate:        seed.ReportDate,
			LowConfidenceTime: recon.LowConfidence(),
		}
		// Optional columns may fall off the end of a ragged row.
		if cols.action >= 0 && cols.action < len(record) {
			event.Action = strings.TrimSpace(record[cols.action])
		}
		if cols.description >= 0 && cols.description < len(record) {
			event.Description = strings.TrimSpace(record[cols.description])
		}
		if cols.priority >= 0 && cols.priority < len(record) {
			if p, err := strconv.Atoi(strings.TrimSpace(record[cols.priority])); err == nil {
				event.Priority = p
			}
		}
		if event.LowConfidenceTime {
			res.LowConfidenceRows++
		}

		res.Events = append(res.Events, event)
		metrics.RowsParsed.Inc()
	}

	metrics.FilesParsed.Inc()
	return res, nil
}

// columnSet holds resolved column indexes; optional columns are -1.
type columnSet struct {
	eventTime   int
	source      int
	condition   int
	action      int
	description int
	priority    int
}

func (c columnSet) maxIndex() int {
	max := c.eventTime
	if c.source > max {
		max = c.source
	}
	if c.condition > max {
		max = c.condition
	}
	return max
}

// resolveColumns maps the detected header's own names to event fields.
// Column spelling varies by plant; matching is case- and whitespace-
// tolerant after NormalizeHeader.
func resolveColumns(header []string, file string) (columnSet, error) {
	cols := columnSet{eventTime: -1, source: -1, condition: -1, action: -1, description: -1, priority: -1}
	for i, field := range header {
		name := NormalizeHeader(field)
		switch {
		case matchesAlias(name, timeAliases):
			if cols.eventTime < 0 {
				cols.eventTime = i
			}
		case matchesAlias(name, sourceAliases):
			if cols.source < 0 {
				cols.source = i
			}
		case matchesAlias(name, conditionAliases):
			if cols.condition < 0 {
				cols.condition = i
			}
		case name == "action" || name == "operator action":
			cols.action = i
		case name == "description" || name == "message" || name == "event description":
			cols.description = i
		case name == "priority" || name == "severity":
			cols.priority = i
		}
	}

	switch {
	case cols.eventTime < 0:
		return cols, &SchemaError{File: file, Column: "Event Time"}
	case cols.source < 0:
		return cols, &SchemaError{File: file, Column: "Source"}
	case cols.condition < 0:
		return cols, &SchemaError{File: file, Column: "Condition"}
	}
	return cols, nil
}
