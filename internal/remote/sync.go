package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/paperlens/paperlens/internal/ident"
	"github.com/paperlens/paperlens/internal/logger"
	"github.com/paperlens/paperlens/internal/metastore"
	"github.com/paperlens/paperlens/models"
)

// UploadRegistry uploads every locally resolved image of a registry from
// dir and records captions. Failures are logged per figure and do not abort
// the rest; RemotePath fields are updated for successful uploads. Returns
// the number of uploads that failed.
func UploadRegistry(ctx context.Context, store Store, paperID string, registry models.Registry, dir string, log logger.Logger) int {
	failed := 0
	for _, id := range sortedIDs(registry) {
		rec := registry[id]
		if rec.LocalPath != "" {
			url, err := putFile(ctx, store, Key(paperID, rec.ID), rec.LocalPath)
			if err != nil {
				log.Warn("Upload of %s/%s failed: %v", paperID, rec.ID, err)
				failed++
			} else {
				rec.RemotePath = url
			}
		}
		if rec.Caption != "" {
			if err := store.RecordCaption(ctx, paperID, rec.ID, rec.Caption); err != nil {
				log.Warn("Recording caption for %s/%s failed: %v", paperID, rec.ID, err)
			}
		}

		for _, sub := range rec.Subfigures {
			subKey := ident.SubfigureKey(rec.ID, sub.ID)
			subPath := filepath.Join(dir, subKey+".png")
			if _, err := os.Stat(subPath); err != nil {
				continue
			}
			if _, err := putFile(ctx, store, Key(paperID, subKey), subPath); err != nil {
				log.Warn("Upload of %s/%s failed: %v", paperID, subKey, err)
				failed++
			}
			if sub.Caption != "" {
				if err := store.RecordCaption(ctx, paperID, subKey, sub.Caption); err != nil {
					log.Warn("Recording caption for %s/%s failed: %v", paperID, subKey, err)
				}
			}
		}
	}
	return failed
}

// Sync reconciles every paper directory under dataRoot against the remote
// index, uploading any image the remote does not have yet. At-least-once:
// re-uploading an existing key writes the same bytes under the same key.
func Sync(ctx context.Context, store Store, dataRoot string, log logger.Logger) (int, error) {
	entries, err := os.ReadDir(dataRoot)
	if err != nil {
		return 0, fmt.Errorf("reading data root: %w", err)
	}

	uploaded := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		paperID := entry.Name()
		dir := filepath.Join(dataRoot, paperID)
		registry, err := metastore.LoadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn("Skipping %s: unreadable sidecar: %v", paperID, err)
			}
			continue
		}

		for _, id := range sortedIDs(registry) {
			rec := registry[id]
			for key, path := range localImages(paperID, dir, rec) {
				figID := keyFigureID(key)
				if _, ok := store.GetURL(ctx, paperID, figID); ok {
					continue
				}
				if _, err := putFile(ctx, store, key, path); err != nil {
					log.Warn("Sync upload of %s failed: %v", key, err)
					continue
				}
				uploaded++
			}
		}
	}
	return uploaded, nil
}

// localImages maps storage key to local file path for a record's parent
// image and any materialized subfigure images.
func localImages(paperID, dir string, rec *models.FigureRecord) map[string]string {
	out := make(map[string]string)
	if rec.LocalPath != "" {
		out[Key(paperID, rec.ID)] = rec.LocalPath
	}
	for _, sub := range rec.Subfigures {
		subKey := ident.SubfigureKey(rec.ID, sub.ID)
		p := filepath.Join(dir, subKey+".png")
		if _, err := os.Stat(p); err == nil {
			out[Key(paperID, subKey)] = p
		}
	}
	return out
}

func keyFigureID(key string) string {
	_, figID, _ := splitKey(key)
	return figID
}

func putFile(ctx context.Context, store Store, key, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return store.Put(ctx, key, data, "image/png")
}

func sortedIDs(registry models.Registry) []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
