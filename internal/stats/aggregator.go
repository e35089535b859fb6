package stats

import (
	"strings"
	"time"

	"floodwatch/internal/flood"
	"floodwatch/pkg/models"
)

// DefaultTopRawActions bounds the long-tail raw action ranking.
const DefaultTopRawActions = 10

// Aggregator computes descriptive breakdowns over an event set. Every
// grouping partitions the input: bucket counts sum exactly to the number of
// events aggregated.
type Aggregator struct {
	TopRawActions int
}

// Aggregate builds the statistics enrichment block.
func (a *Aggregator) Aggregate(events []models.Event, now time.Time) models.EventStatistics {
	topN := a.TopRawActions
	if topN <= 0 {
		topN = DefaultTopRawActions
	}

	out := models.EventStatistics{
		ByConditionClass: make(map[models.ConditionClass]int, 4),
		ByDay:            make(map[string]int),
		BySource:         make(map[string]int),
		ComputedAt:       now.UTC(),
	}
	rawActions := make(map[string]int)

	for _, event := range events {
		switch ActionBucket(event.Action) {
		case models.ActionBucketAck:
			out.ByAction.Acknowledged++
		case models.ActionBucketResetOK:
			out.ByAction.ResetOK++
		case models.ActionBucketShelve:
			out.ByAction.ShelveSuppress++
		case models.ActionBucketBlank:
			out.ByAction.Blank++
		default:
			out.ByAction.Other++
		}
		if normalized := NormalizeAction(event.Action); normalized != "" {
			rawActions[normalized]++
		}

		out.ByConditionClass[ClassifyCondition(event.Condition)]++
		out.ByDay[event.EventTime.UTC().Format("2006-01-02")]++
		out.BySource[event.Source]++
	}

	out.ByAction.TopRawActions = flood.RankSources(rawActions, topN)
	return out
}

// ConditionsByLocation groups condition classes per location. The location
// is the leading segment of the tag name; a tag with no segmenting dot is
// its own location.
func ConditionsByLocation(events []models.Event) map[string]map[models.ConditionClass]int {
	out := make(map[string]map[models.ConditionClass]int)
	for _, event := range events {
		loc := LocationOf(event.Source)
		if out[loc] == nil {
			out[loc] = make(map[models.ConditionClass]int, 4)
		}
		out[loc][ClassifyCondition(event.Condition)]++
	}
	return out
}

// LocationOf extracts the location segment from a source tag.
func LocationOf(source string) string {
	if idx := strings.IndexByte(source, '.'); idx > 0 {
		return source[:idx]
	}
	return source
}

var alarmConditions = map[string]struct{}{
	"ALARM": {}, "ALM": {}, "HI": {}, "HIHI": {}, "HIGH": {}, "HIGH HIGH": {},
	"LO": {}, "LOLO": {}, "LOW": {}, "LOW LOW": {}, "DEV": {}, "DEVHI": {},
	"DEVLO": {}, "ROC": {}, "OFFNORM": {}, "OFF-NORMAL": {}, "OFFNRM": {},
}

var stateConditions = map[string]struct{}{
	"STATE": {}, "STATECHANGE": {}, "STATE CHANGE": {}, "ON": {}, "OFF": {},
	"NORMAL": {}, "RTN": {}, "ACTIVE": {}, "INACTIVE": {}, "SYSTEM": {},
}

var qualityConditions = map[string]struct{}{
	"BAD": {}, "BADPV": {}, "BAD VALUE": {}, "UNCERTAIN": {}, "IOFAIL": {},
	"IOFAILURE": {}, "COMMFAIL": {}, "QUALITY": {}, "DISABLED": {}, "DISABLE": {},
}

// ClassifyCondition buckets a condition code into its coarse class.
func ClassifyCondition(code string) models.ConditionClass {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if _, ok := alarmConditions[normalized]; ok {
		return models.ClassAlarm
	}
	if _, ok := stateConditions[normalized]; ok {
		return models.ClassStateChange
	}
	if _, ok := qualityConditions[normalized]; ok {
		return models.ClassQuality
	}
	return models.ClassOther
}

// NormalizeAction lowercases and blank-trims an operator action. The empty
// string marks a blank action.
func NormalizeAction(action string) string {
	return strings.Join(strings.Fields(strings.ToLower(action)), " ")
}

// ActionBucket maps a raw operator action onto its first-class bucket.
func ActionBucket(action string) models.ActionBucketKind {
	normalized := NormalizeAction(action)
	switch {
	case normalized == "":
		return models.ActionBucketBlank
	case strings.Contains(normalized, "ack"):
		return models.ActionBucketAck
	case strings.Contains(normalized, "reset") || normalized == "ok" || strings.Contains(normalized, "return to normal"):
		return models.ActionBucketResetOK
	case strings.Contains(normalized, "shelve") || strings.Contains(normalized, "suppress"):
		return models.ActionBucketShelve
	default:
		return models.ActionBucketOther
	}
}
