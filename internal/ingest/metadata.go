package ingest

import (
	"regexp"
	"strings"
	"time"

	"floodwatch/internal/logger"
)

// DefaultPreambleScanRows bounds how far into a file the metadata scan looks.
const DefaultPreambleScanRows = 20

// Column name aliases vary by plant and export tool; matching is done on
// NormalizeHeader output.
var (
	timeAliases      = []string{"event time", "eventtime", "time"}
	sourceAliases    = []string{"source", "tag", "tagname", "tag name"}
	conditionAliases = []string{"condition", "condition name"}
)

// MetadataSeed is the per-file parse context: where the data starts and the
// temporal anchor for reconstructing truncated in-row timestamps. Computed
// once per file and held in memory for the ingestion pass only.
type MetadataSeed struct {
	SkipRows    int      // records preceding the header row
	HeaderRow   []string // raw header fields
	SeedInstant time.Time
	HasSeed     bool
	ReportDate  time.Time // the export's stated report date, if any
}

var (
	usDateTimeRe  = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}\s+\d{1,2}:\d{2}(?::\d{2})?(?:\.\d+)?\s*(?:[AaPp][Mm])?`)
	isoDateTimeRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}(?::\d{2})?(?:\.\d+)?`)
	usDateRe      = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)
)

var instantLayouts = []string{
	"1/2/2006 3:04:05.000 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04:05.000",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"1/2/2006",
}

// filterMarkers signal an explicit upper filter bound; that bound is the
// actual temporal anchor for truncated in-row timestamps, so it outranks a
// generic "report generated" timestamp.
var filterMarkers = []string{"as of", "before", "filter"}

var reportMarkers = []string{"generated", "report date", "printed", "report time"}

// DetectMetadata scans a bounded number of leading records for the header
// row and the seed instant. Records are raw CSV rows in on-disk order.
// A missing header yields ErrHeaderNotFound; a missing seed is not an error,
// callers fall back to the report date and mark rows low-confidence.
func DetectMetadata(records [][]string, file string, maxScan int) (MetadataSeed, error) {
	if maxScan <= 0 {
		maxScan = DefaultPreambleScanRows
	}
	if maxScan > len(records) {
		maxScan = len(records)
	}

	seed := MetadataSeed{SkipRows: -1}
	for i := 0; i < maxScan; i++ {
		if isHeaderRow(records[i]) {
			seed.SkipRows = i
			seed.HeaderRow = records[i]
			break
		}
	}
	if seed.SkipRows < 0 {
		return MetadataSeed{}, ErrHeaderNotFound
	}

	var filterInstant, reportInstant time.Time
	for i := 0; i < maxScan && i < seed.SkipRows; i++ {
		raw := strings.Join(records[i], " ")
		line := strings.ToLower(raw)
		instant, ok := findInstant(raw)
		if !ok {
			continue
		}
		switch {
		case containsAny(line, filterMarkers):
			if filterInstant.IsZero() {
				filterInstant = instant
			} else if !filterInstant.Equal(instant) {
				// First filter marker is authoritative; a second conflicting
				// one is logged, not merged.
				logger.Warnf("conflicting filter instants in %s preamble: keeping %s, ignoring %s",
					file, filterInstant.Format(time.RFC3339), instant.Format(time.RFC3339))
			}
		case containsAny(line, reportMarkers):
			if reportInstant.IsZero() {
				reportInstant = instant
			}
		}
	}

	switch {
	case !filterInstant.IsZero():
		seed.SeedInstant = filterInstant
		seed.HasSeed = true
	case !reportInstant.IsZero():
		seed.SeedInstant = reportInstant
		seed.HasSeed = true
	}
	if !reportInstant.IsZero() {
		seed.ReportDate = reportInstant.Truncate(24 * time.Hour)
	} else if !filterInstant.IsZero() {
		seed.ReportDate = filterInstant.Truncate(24 * time.Hour)
	}

	return seed, nil
}

// isHeaderRow treats a row as the header when it names the event time column
// and at least one other required column. A header found this way with a
// required column fully absent is reported later as a schema skip, not as a
// missing header.
func isHeaderRow(record []string) bool {
	var hasTime, hasSource, hasCondition bool
	for _, field := range record {
		name := NormalizeHeader(field)
		switch {
		case matchesAlias(name, timeAliases):
			hasTime = true
		case matchesAlias(name, sourceAliases):
			hasSource = true
		case matchesAlias(name, conditionAliases):
			hasCondition = true
		}
	}
	return hasTime && (hasSource || hasCondition)
}

func matchesAlias(name string, aliases []string) bool {
	for _, alias := range aliases {
		if name == alias {
			return true
		}
	}
	return false
}

// NormalizeHeader lowercases a column name and collapses internal whitespace.
func NormalizeHeader(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func containsAny(line string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// findInstant extracts the most specific date-time from a preamble line.
func findInstant(line string) (time.Time, bool) {
	for _, re := range []*regexp.Regexp{usDateTimeRe, isoDateTimeRe, usDateRe} {
		match := re.FindString(line)
		if match == "" {
			continue
		}
		if t, ok := parseInstant(match); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseInstant(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	// time.Parse is case-sensitive about the AM/PM marker.
	if n := len(value); n >= 2 {
		suffix := strings.ToUpper(value[n-2:])
		if suffix == "AM" || suffix == "PM" {
			value = strings.TrimSpace(value[:n-2]) + " " + suffix
		}
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
