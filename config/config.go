package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	FloodWatch FloodWatchConfig `yaml:"floodwatch"`
}

// FloodWatchConfig is the project configuration.
type FloodWatchConfig struct {
	Plants  []PlantConfig `yaml:"plants"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Flood   FloodConfig   `yaml:"flood"`
	Health  HealthConfig  `yaml:"health"`
	Stats   StatsConfig   `yaml:"stats"`
	Cache   CacheConfig   `yaml:"cache"`
	Lock    LockConfig    `yaml:"lock"`
	History HistoryConfig `yaml:"history"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Rules   RulesConfig   `yaml:"rules"`
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// PlantConfig maps a plant id to its export files on disk.
type PlantConfig struct {
	ID      string `yaml:"id"`
	Dir     string `yaml:"dir"`
	Pattern string `yaml:"pattern"` // glob relative to Dir, default *.csv
}

// IngestConfig controls export-file parsing.
type IngestConfig struct {
	Workers          int `yaml:"workers"`
	PreambleScanRows int `yaml:"preamble_scan_rows"`
}

// FloodConfig controls flood window detection.
type FloodConfig struct {
	WindowWidth         time.Duration `yaml:"window_width"`
	Threshold           int           `yaml:"threshold"`
	UnhealthyConditions []string      `yaml:"unhealthy_conditions"`
}

// GradeThreshold maps a minimum composite score to a label. Thresholds are an
// ordered covering of [0,100]; the last entry must have min 0.
type GradeThreshold struct {
	Min   float64 `yaml:"min"`
	Label string  `yaml:"label"`
}

// HealthConfig controls the health score calculator.
type HealthConfig struct {
	Weights         map[string]float64 `yaml:"weights"`
	GradeThresholds []GradeThreshold   `yaml:"grade_thresholds"`
	RiskThresholds  []GradeThreshold   `yaml:"risk_thresholds"`
	TrendWindowDays int                `yaml:"trend_window_days"`
}

// StatsConfig controls ranking sizes.
type StatsConfig struct {
	TopSources    int `yaml:"top_sources"`
	TopRawActions int `yaml:"top_raw_actions"`
}

// CacheConfig controls artifact persistence.
type CacheConfig struct {
	Dir         string `yaml:"dir"`
	KeepBackups int    `yaml:"keep_backups"`
}

// LockConfig controls the per-plant Redis write lock. When Addr is empty the
// cache manager falls back to an in-process lock.
type LockConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// HistoryConfig controls the optional Postgres run-history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Schema  string `yaml:"schema"`
}

// AlertsConfig controls flood alert emission.
type AlertsConfig struct {
	Enabled bool              `yaml:"enabled"`
	Mode    string            `yaml:"mode"` // file|kafka
	File    FileOutputConfig  `yaml:"file"`
	Kafka   KafkaOutputConfig `yaml:"kafka"`
}

// FileOutputConfig config for local JSONL output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// KafkaOutputConfig config for Kafka alert publication.
type KafkaOutputConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RulesConfig controls optional rule-based unhealthy classification.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatchConfig controls the directory-watching rebuild mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// MetricsConfig controls the Prometheus endpoint served in watch mode.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
