package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/h3nryswan/video-transcoder/internal/model"

	"github.com/goccy/go-json"
)

// Document persists the state as one JSON document that is rewritten in full
// on every save
type Document struct {
	path string
}

func NewDocument(path string) (*Document, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s, %w", path, err)
	}

	return &Document{path: path}, nil
}

func (d *Document) Path() string {
	return d.path
}

// Load reads the document. A missing or empty document yields an empty state,
// which is written out right away so the file exists from the first start on.
func (d *Document) Load(ctx context.Context) (*model.State, error) {
	data, err := os.ReadFile(d.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s, %w", d.path, err)
	}

	if len(data) == 0 {
		s := model.NewState()
		if err := d.Save(ctx, s); err != nil {
			return nil, err
		}

		return s, nil
	}

	var s model.State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s, %w", d.path, err)
	}

	if s.Files == nil {
		s.Files = []model.File{}
	}
	if s.Jobs == nil {
		s.Jobs = []model.Job{}
	}

	return &s, nil
}

// Save writes to a temporary file in the same directory and renames it over
// the document, so readers see either the old or the new state
func (d *Document) Save(_ context.Context, s *model.State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state, %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), ".db-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s, %w", d.path, err)
	}
	tmpPath := tmp.Name()

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(fmt.Errorf("failed to write %s, %w", tmpPath, err))
	}

	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync %s, %w", tmpPath, err))
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s, %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, d.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s, %w", d.path, err)
	}

	return nil
}

func (d *Document) Close() error {
	return nil
}
