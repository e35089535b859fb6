package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"floodwatch/internal/logger"
	"floodwatch/pkg/models"
)

// ErrWriteConflict means another writer holds the per-plant lock. Callers
// must retry, never overwrite.
var ErrWriteConflict = errors.New("concurrent artifact write detected")

// FileStore persists one JSON artifact per plant. Writes go through a
// temporary file and a rename, so a reader always sees a complete,
// previously committed document; the prior artifact is backed up first so a
// failed or incorrect enrichment is always recoverable.
type FileStore struct {
	dir         string
	keepBackups int
}

// NewFileStore creates the artifact directory if needed.
func NewFileStore(dir string, keepBackups int) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "artifacts"
	}
	if keepBackups <= 0 {
		keepBackups = 3
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &FileStore{dir: dir, keepBackups: keepBackups}, nil
}

// Path returns the canonical artifact path for a plant.
func (s *FileStore) Path(plantID string) string {
	return filepath.Join(s.dir, plantID+".json")
}

// Load reads the last committed artifact for a plant.
func (s *FileStore) Load(plantID string) (*models.PlantHealthArtifact, error) {
	data, err := os.ReadFile(s.Path(plantID))
	if err != nil {
		return nil, fmt.Errorf("read artifact for %s: %w", plantID, err)
	}
	var artifact models.PlantHealthArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decode artifact for %s: %w", plantID, err)
	}
	return &artifact, nil
}

// Exists reports whether a committed artifact is present for a plant.
func (s *FileStore) Exists(plantID string) bool {
	_, err := os.Stat(s.Path(plantID))
	return err == nil
}

// Save commits an artifact: backup the prior document, write the new one to
// a temporary file, then rename over the canonical path.
func (s *FileStore) Save(plantID string, artifact *models.PlantHealthArtifact) error {
	path := s.Path(plantID)

	if _, err := os.Stat(path); err == nil {
		backup := fmt.Sprintf("%s.bak-%s", path, time.Now().UTC().Format("20060102T150405"))
		prior, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read prior artifact for backup: %w", err)
		}
		if err := os.WriteFile(backup, prior, 0644); err != nil {
			return fmt.Errorf("write artifact backup: %w", err)
		}
		s.pruneBackups(path)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact for %s: %w", plantID, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write artifact temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit artifact for %s: %w", plantID, err)
	}

	logger.Debugf("artifact committed: %s", path)
	return nil
}

func (s *FileStore) pruneBackups(path string) {
	matches, err := filepath.Glob(path + ".bak-*")
	if err != nil || len(matches) <= s.keepBackups {
		return
	}
	sort.Strings(matches) // timestamp suffix sorts chronologically
	for _, stale := range matches[:len(matches)-s.keepBackups] {
		if err := os.Remove(stale); err != nil {
			logger.Warnf("failed to prune artifact backup %s: %v", stale, err)
		}
	}
}
