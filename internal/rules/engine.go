package rules

import "floodwatch/pkg/models"

// Engine applies classification rules to events. A non-empty tag list marks
// the event unhealthy in addition to the configured condition set.
type Engine interface {
	Apply(event *models.Event) []models.RuleTag
}

// NoopEngine returns no tags.
type NoopEngine struct{}

// Apply returns an empty tag list.
func (n *NoopEngine) Apply(event *models.Event) []models.RuleTag {
	return nil
}
