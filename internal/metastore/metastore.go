// Package metastore persists a paper's figure registry as a JSON sidecar
// file next to the extracted images. The sidecar is the unit of truth
// between pipeline runs: its presence is what makes re-extraction a no-op.
package metastore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paperlens/paperlens/models"
)

const (
	// CanonicalName is the sidecar filename for new writes.
	CanonicalName = "figures_metadata.json"
	// LegacyName is an older sidecar filename still recognized on load.
	LegacyName = "figures.json"
)

// sidecarRecord is the on-disk shape of one registry entry. Image paths are
// stored relative to the sidecar's directory so output trees stay movable.
type sidecarRecord struct {
	Caption       string             `json:"caption,omitempty"`
	Type          models.FigureType  `json:"type"`
	HasSubfigures bool               `json:"has_subfigures,omitempty"`
	Subfigures    []models.Subfigure `json:"subfigures,omitempty"`
	Content       string             `json:"content,omitempty"`
	Path          string             `json:"path,omitempty"`
	RemotePath    string             `json:"remote_path,omitempty"`
}

// Save writes the registry to dir's canonical sidecar file. Local paths are
// stored relative to dir; records without a local image store no path.
func Save(registry models.Registry, dir string) error {
	out := make(map[string]sidecarRecord, len(registry))
	for id, rec := range registry {
		sr := sidecarRecord{
			Caption:       rec.Caption,
			Type:          rec.Type,
			HasSubfigures: rec.HasSubfigures,
			Subfigures:    rec.Subfigures,
			Content:       rec.Content,
			RemotePath:    rec.RemotePath,
		}
		if rec.LocalPath != "" {
			rel, err := filepath.Rel(dir, rec.LocalPath)
			if err != nil {
				rel = filepath.Base(rec.LocalPath)
			}
			sr.Path = rel
		}
		out[id] = sr
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling figure metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, CanonicalName), data, 0644); err != nil {
		return fmt.Errorf("writing figure metadata: %w", err)
	}
	return nil
}

// Load reads a sidecar file and reconstructs the registry. LocalPath is
// rebuilt by joining baseDir with the stored relative path, but only when
// the file still exists on disk; a stale path yields a record with no local
// image rather than an error.
func Load(path, baseDir string) (models.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading figure metadata: %w", err)
	}

	var raw map[string]sidecarRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing figure metadata %s: %w", path, err)
	}

	registry := make(models.Registry, len(raw))
	for id, sr := range raw {
		rec := &models.FigureRecord{
			ID:            id,
			Caption:       sr.Caption,
			Type:          sr.Type,
			HasSubfigures: sr.HasSubfigures,
			Subfigures:    sr.Subfigures,
			Content:       sr.Content,
			RemotePath:    sr.RemotePath,
		}
		if sr.Path != "" {
			full := filepath.Join(baseDir, sr.Path)
			if _, err := os.Stat(full); err == nil {
				rec.LocalPath = full
			}
		}
		registry[id] = rec
	}
	return registry, nil
}

// FindSidecar locates the sidecar file in dir, preferring the canonical
// name over the legacy one when both exist.
func FindSidecar(dir string) (string, bool) {
	for _, name := range []string{CanonicalName, LegacyName} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// LoadDir is the common load path: find the sidecar in dir and read it.
func LoadDir(dir string) (models.Registry, error) {
	path, ok := FindSidecar(dir)
	if !ok {
		return nil, os.ErrNotExist
	}
	return Load(path, dir)
}
