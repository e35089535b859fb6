package pipeline

import "floodwatch/pkg/models"

// AlertWriter writes flood alert outputs.
type AlertWriter interface {
	WriteAlerts(alerts []*models.FloodAlert) error
	Close() error
}
