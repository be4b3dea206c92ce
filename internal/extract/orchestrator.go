package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paperlens/paperlens/internal/ident"
	"github.com/paperlens/paperlens/internal/logger"
	"github.com/paperlens/paperlens/internal/metastore"
	"github.com/paperlens/paperlens/internal/remote"
	"github.com/paperlens/paperlens/models"
)

// Orchestrator sequences the extraction strategies for one paper and owns
// everything around them: sidecar idempotency, persistence, thumbnail
// derivation, and remote upload. Extraction failures degrade; only output
// directory problems surface as errors.
type Orchestrator struct {
	primary    Extractor
	fallback   Extractor
	store      remote.Store
	log        logger.Logger
	thumbWidth int
}

// NewOrchestrator wires the two strategies. fallback and store may be nil.
func NewOrchestrator(primary, fallback Extractor, store remote.Store, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		primary:    primary,
		fallback:   fallback,
		store:      store,
		log:        log,
		thumbWidth: DefaultThumbWidth,
	}
}

// Run extracts figures for one paper into outDir. Without force, an existing
// sidecar short-circuits the whole pipeline, including an empty one: a prior
// run that found nothing is a valid, settled result. With force, everything
// is recomputed and stale images from earlier runs are removed.
//
// An empty primary result (or a primary error) triggers the fallback. Both
// strategies failing still persists an empty sidecar so the next run is a
// cheap no-op.
func (o *Orchestrator) Run(ctx context.Context, src models.PaperSource, outDir string, force bool) (models.Registry, error) {
	if !force {
		if registry, err := metastore.LoadDir(outDir); err == nil {
			o.log.Debug("Using cached registry for %s (%d records)", src.PaperID, len(registry))
			return registry, nil
		}
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	registry, err := o.primary.Extract(ctx, src, outDir)
	if err != nil {
		o.log.Warn("HTML extraction for %s failed: %v", src.PaperID, err)
		registry = nil
	}
	if len(registry) == 0 && o.fallback != nil && src.PDFPath != "" {
		o.log.Info("Falling back to PDF extraction for %s", src.PaperID)
		registry, err = o.fallback.Extract(ctx, src, outDir)
		if err != nil {
			o.log.Warn("PDF extraction for %s failed: %v", src.PaperID, err)
			registry = nil
		}
	}
	if registry == nil {
		registry = make(models.Registry)
	}

	if force {
		o.removeStale(outDir, registry)
	}

	if err := metastore.Save(registry, outDir); err != nil {
		// Persistence problems never block the pipeline; the registry in
		// hand is still good.
		o.log.Error("Persisting registry for %s failed: %v", src.PaperID, err)
	}

	if len(registry) > 0 {
		if _, err := Thumbnail(registry, outDir, o.thumbWidth); err != nil {
			o.log.Debug("Thumbnail for %s failed: %v", src.PaperID, err)
		}
		if o.store != nil {
			if failed := remote.UploadRegistry(ctx, o.store, src.PaperID, registry, outDir, o.log); failed > 0 {
				o.log.Warn("%d uploads failed for %s; local files remain authoritative", failed, src.PaperID)
			}
			// Re-save to capture remote paths.
			if err := metastore.Save(registry, outDir); err != nil {
				o.log.Error("Persisting registry for %s failed: %v", src.PaperID, err)
			}
		}
	}

	return registry, nil
}

// removeStale deletes images from previous runs whose ids are no longer in
// the registry. The sidecar files and thumbnail are rewritten anyway.
func (o *Orchestrator) removeStale(outDir string, registry models.Registry) {
	keep := make(map[string]bool, len(registry))
	for id, rec := range registry {
		keep[id+".png"] = true
		for _, sf := range rec.Subfigures {
			keep[ident.SubfigureKey(id, sf.ID)+".png"] = true
		}
	}
	keep[ThumbnailName] = true

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".png") || keep[name] {
			continue
		}
		if err := os.Remove(filepath.Join(outDir, name)); err != nil {
			o.log.Debug("Removing stale %s failed: %v", name, err)
		} else {
			o.log.Debug("Removed stale %s", name)
		}
	}
}
