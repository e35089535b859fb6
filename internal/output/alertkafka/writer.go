package alertkafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"floodwatch/internal/logger"
	"floodwatch/pkg/models"
)

// Config configures the Kafka alert writer.
type Config struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
}

// Writer publishes flood alerts to a Kafka topic, keyed by plant id so one
// plant's alerts stay ordered within a partition.
type Writer struct {
	writer  *kafka.Writer
	timeout time.Duration
}

// NewWriter creates a Kafka writer for flood alerts.
func NewWriter(cfg Config) (*Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	logger.Infof("Flood alert Kafka writer initialized: topic=%s", cfg.Topic)
	return &Writer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.LeastBytes{},
		},
		timeout: cfg.Timeout,
	}, nil
}

// WriteAlerts publishes a batch of flood alerts.
func (w *Writer) WriteAlerts(alerts []*models.FloodAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(alerts))
	for _, alert := range alerts {
		data, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("failed to encode flood alert: %w", err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(alert.PlantID),
			Value: data,
			Time:  alert.WindowStart,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	return w.writer.WriteMessages(ctx, messages...)
}

// Close closes the Kafka writer.
func (w *Writer) Close() error {
	return w.writer.Close()
}
