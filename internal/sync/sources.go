package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conorfennell/lexideck/internal/storage"
)

var (
	ErrEmptySourcePath = errors.New("source path cannot be empty")
	ErrSourceExists    = errors.New("source already exists")
)

// SourceStore is the storage needed to register sources.
type SourceStore interface {
	FindSourceByPath(ctx context.Context, path string) (*storage.Source, error)
	InsertSource(ctx context.Context, path, sourceType string) (int64, error)
}

// AddSource registers path as a card source. Local paths are stored as
// absolute paths so later syncs do not depend on the working directory.
func AddSource(ctx context.Context, db SourceStore, path string) (storage.Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return storage.Source{}, ErrEmptySourcePath
	}

	sourceType := SourceType(path)
	if sourceType == storage.SourceLocal {
		abs, err := filepath.Abs(path)
		if err != nil {
			return storage.Source{}, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		path = abs
	}

	existing, err := db.FindSourceByPath(ctx, path)
	if err != nil {
		return storage.Source{}, err
	}
	if existing != nil {
		return *existing, fmt.Errorf("%w: %s", ErrSourceExists, path)
	}

	id, err := db.InsertSource(ctx, path, sourceType)
	if err != nil {
		return storage.Source{}, err
	}
	return storage.Source{ID: id, Path: path, Type: sourceType}, nil
}
