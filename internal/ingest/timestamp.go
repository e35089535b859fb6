package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Rows carrying a full date parse directly; these layouts cover the locale
// variants observed across plant exports.
var rowLayouts = []string{
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02-Jan-2006 15:04:05",
}

var (
	truncatedRe = regexp.MustCompile(`^(\d{1,2}):(\d{2}(?:\.\d+)?)$`)
	timeOnlyRe  = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2}(?:\.\d+)?)$`)
)

// Reconstructor resolves raw per-row timestamps into absolute UTC instants.
// Exports list rows newest-first, so the running context only ever moves
// backwards; a value that would move it forward signals a rollover and
// decrements the hour (or day) instead. Row order is load-bearing: callers
// must feed rows in on-disk order.
type Reconstructor struct {
	current       time.Time
	haveContext   bool
	lowConfidence bool
}

// NewReconstructor anchors a reconstructor on a file's metadata seed. With
// no seed instant the report date is a best-effort anchor and every
// reconstructed row is flagged low-confidence.
func NewReconstructor(seed MetadataSeed) *Reconstructor {
	r := &Reconstructor{}
	switch {
	case seed.HasSeed:
		r.current = seed.SeedInstant
		r.haveContext = true
	case !seed.ReportDate.IsZero():
		// Underspecified fallback: anchor on the end of the report day so
		// descending truncated rows still resolve inside that day.
		r.current = seed.ReportDate.Add(24*time.Hour - time.Second)
		r.haveContext = true
		r.lowConfidence = true
	}
	return r
}

// LowConfidence reports whether resolved instants for this file come from a
// report-date fallback rather than a seed instant.
func (r *Reconstructor) LowConfidence() bool {
	return r.lowConfidence
}

// Resolve returns the absolute UTC instant for one raw timestamp value.
// The second return is false when the value cannot be resolved at all; such
// rows are dropped by the caller, never defaulted.
func (r *Reconstructor) Resolve(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}

	if t, ok := parseFullRow(value); ok {
		r.current = t
		r.haveContext = true
		return t, true
	}

	if !r.haveContext {
		return time.Time{}, false
	}

	if m := timeOnlyRe.FindStringSubmatch(value); m != nil {
		hour, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		sec, _ := strconv.ParseFloat(m[3], 64)
		if hour < 24 && min < 60 && sec < 60 {
			t := atClock(r.current, hour, min, sec)
			if t.After(r.current) {
				// Descending export crossed midnight.
				t = t.AddDate(0, 0, -1)
			}
			r.current = t
			return t, true
		}
	}

	if m := truncatedRe.FindStringSubmatch(value); m != nil {
		min, _ := strconv.Atoi(m[1])
		sec, _ := strconv.ParseFloat(m[2], 64)
		if min < 60 && sec < 60 {
			t := atClock(r.current, r.current.Hour(), min, sec)
			if t.After(r.current) {
				// Minute increased while time should be decreasing: the
				// running context belongs to the previous hour.
				t = t.Add(-time.Hour)
			}
			r.current = t
			return t, true
		}
	}

	return time.Time{}, false
}

func parseFullRow(value string) (time.Time, bool) {
	if n := len(value); n >= 2 {
		suffix := strings.ToUpper(value[n-2:])
		if suffix == "AM" || suffix == "PM" {
			value = strings.TrimSpace(value[:n-2]) + " " + suffix
		}
	}
	for _, layout := range rowLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func atClock(ref time.Time, hour, min int, sec float64) time.Time {
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, min, 0, 0, time.UTC)
	return day.Add(time.Duration(math.Round(sec * float64(time.Second))))
}
