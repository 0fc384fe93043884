package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sawpanic/swingrun/internal/calibration"
)

const latestFile = "latest.json"

// FileProfileStore keeps profiles as JSON documents in a directory: one file
// per profile ID plus latest.json mirroring the active one
type FileProfileStore struct {
	dir string
}

// NewFileProfileStore creates the directory if needed
func NewFileProfileStore(dir string) (*FileProfileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory %s: %w", dir, err)
	}
	return &FileProfileStore{dir: dir}, nil
}

// Save writes <id>.json and latest.json, each via a rename so readers never
// see a partial file
func (s *FileProfileStore) Save(ctx context.Context, p *calibration.Profile) error {
	if p == nil || p.ID == "" {
		return errors.New("profile must have an ID")
	}
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, p.ID+".json"), raw); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.dir, latestFile), raw)
}

// Latest reads latest.json
func (s *FileProfileStore) Latest(ctx context.Context) (*calibration.Profile, error) {
	return s.read(filepath.Join(s.dir, latestFile))
}

// Get reads <id>.json
func (s *FileProfileStore) Get(ctx context.Context, id string) (*calibration.Profile, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("invalid profile id %q", id)
	}
	return s.read(filepath.Join(s.dir, id+".json"))
}

// ClearLatest removes latest.json; a missing file is not an error
func (s *FileProfileStore) ClearLatest(ctx context.Context) error {
	err := os.Remove(filepath.Join(s.dir, latestFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear latest profile: %w", err)
	}
	return nil
}

func (s *FileProfileStore) read(path string) (*calibration.Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	var p calibration.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", path, err)
	}
	return &p, nil
}

func writeAtomic(path string, raw []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
