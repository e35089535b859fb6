package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"floodwatch/pkg/models"
)

// HistoryConfig locates the optional Postgres run-history database.
type HistoryConfig struct {
	DSN    string
	Schema string
}

// HistoryStore records one row per artifact build so score drift can be
// tracked across runs without diffing artifact files.
type HistoryStore struct {
	db     *sql.DB
	schema string
}

// ResolveHistoryConfig fills the DSN from the environment when the config
// leaves it empty.
func ResolveHistoryConfig(cfg HistoryConfig) (HistoryConfig, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("FLOODWATCH_DB_URL"))
	}
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		return HistoryConfig{}, errors.New("history DSN missing: set history.dsn, FLOODWATCH_DB_URL, or DATABASE_URL")
	}
	if strings.TrimSpace(cfg.Schema) == "" {
		cfg.Schema = "floodwatch"
	}
	return HistoryConfig{DSN: dsn, Schema: cfg.Schema}, nil
}

// OpenHistory connects, pings, and ensures the schema exists.
func OpenHistory(ctx context.Context, cfg HistoryConfig) (*HistoryStore, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	store := &HistoryStore{db: db, schema: cfg.Schema}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *HistoryStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, s.schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.runs (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			plant_id TEXT NOT NULL,
			artifact_id TEXT NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL,
			total_events INTEGER NOT NULL,
			unhealthy_events INTEGER NOT NULL,
			flood_windows INTEGER NOT NULL,
			flood_time_percent DOUBLE PRECISION NOT NULL,
			composite_score DOUBLE PRECISION NOT NULL,
			grade TEXT NOT NULL,
			risk_level TEXT NOT NULL,
			files_parsed INTEGER NOT NULL,
			files_skipped INTEGER NOT NULL
		)`, s.schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS runs_plant_created_idx ON %s.runs (plant_id, created_at DESC)`, s.schema),
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure history schema: %w", err)
		}
	}
	return nil
}

// RecordRun inserts one run row for a freshly built artifact.
func (s *HistoryStore) RecordRun(ctx context.Context, artifact *models.PlantHealthArtifact) error {
	query := fmt.Sprintf(`INSERT INTO %s.runs (
		plant_id, artifact_id, generated_at,
		total_events, unhealthy_events, flood_windows, flood_time_percent,
		composite_score, grade, risk_level, files_parsed, files_skipped
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, s.schema)

	_, err := s.db.ExecContext(ctx, query,
		artifact.PlantID,
		artifact.ArtifactID,
		artifact.GeneratedAt,
		artifact.Overall.TotalEvents,
		artifact.Overall.UnhealthyEvents,
		artifact.Overall.FloodWindowCount,
		artifact.Overall.FloodTimePercent,
		artifact.Health.CompositeScore,
		artifact.Health.Grade,
		artifact.Health.RiskLevel,
		artifact.Diagnostics.FilesParsed,
		artifact.Diagnostics.FilesSkipped,
	)
	if err != nil {
		return fmt.Errorf("record run for %s: %w", artifact.PlantID, err)
	}
	return nil
}

// Close closes the database handle.
func (s *HistoryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
