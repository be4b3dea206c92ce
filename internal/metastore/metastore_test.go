package metastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paperlens/paperlens/models"
)

func sampleRegistry(dir string) models.Registry {
	return models.Registry{
		"fig1": {
			ID:            "fig1",
			Caption:       "Training curves",
			Type:          models.TypeFigure,
			HasSubfigures: true,
			Subfigures: []models.Subfigure{
				{ID: "a", Caption: "loss"},
				{ID: "b", Caption: "accuracy"},
			},
			LocalPath: filepath.Join(dir, "fig1.png"),
		},
		"tab1": {
			ID:      "tab1",
			Caption: "Ablation results",
			Type:    models.TypeTable,
			Content: "| model | score |\n| --- | --- |\n| base | 0.7 |",
		},
		"appendix_fig2": {
			ID:         "appendix_fig2",
			Caption:    "Extra plots",
			Type:       models.TypeFigure,
			LocalPath:  filepath.Join(dir, "appendix_fig2.png"),
			RemotePath: "https://store.example.org/2401.00001/appendix_fig2.png",
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	reg := sampleRegistry(dir)

	// Only fig1's image exists on disk; appendix_fig2's is stale.
	if err := os.WriteFile(filepath.Join(dir, "fig1.png"), []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Save(reg, dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(filepath.Join(dir, CanonicalName), dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("loaded %d records, want 3", len(loaded))
	}

	fig1 := loaded["fig1"]
	if fig1 == nil {
		t.Fatal("fig1 missing")
	}
	if fig1.Caption != "Training curves" || !fig1.HasSubfigures || len(fig1.Subfigures) != 2 {
		t.Errorf("fig1 = %+v", fig1)
	}
	if fig1.Subfigures[0].ID != "a" || fig1.Subfigures[1].ID != "b" {
		t.Errorf("subfigure order not preserved: %+v", fig1.Subfigures)
	}
	if fig1.LocalPath != filepath.Join(dir, "fig1.png") {
		t.Errorf("fig1.LocalPath = %q", fig1.LocalPath)
	}

	tab1 := loaded["tab1"]
	if tab1.Type != models.TypeTable || tab1.Content == "" {
		t.Errorf("tab1 = %+v", tab1)
	}

	// Stale path degrades to no local image, not an error.
	appendix := loaded["appendix_fig2"]
	if appendix.LocalPath != "" {
		t.Errorf("stale LocalPath should be empty, got %q", appendix.LocalPath)
	}
	if appendix.RemotePath == "" {
		t.Error("RemotePath lost in round trip")
	}
}

func TestFindSidecarPrefersCanonical(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, LegacyName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	path, ok := FindSidecar(dir)
	if !ok || filepath.Base(path) != LegacyName {
		t.Errorf("FindSidecar = (%q, %v), want legacy name", path, ok)
	}

	if err := os.WriteFile(filepath.Join(dir, CanonicalName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	path, ok = FindSidecar(dir)
	if !ok || filepath.Base(path) != CanonicalName {
		t.Errorf("FindSidecar = (%q, %v), want canonical name", path, ok)
	}
}

func TestFindSidecarMissing(t *testing.T) {
	if _, ok := FindSidecar(t.TempDir()); ok {
		t.Error("FindSidecar on empty dir should report absence")
	}
}

func TestLoadLegacyFilename(t *testing.T) {
	dir := t.TempDir()
	reg := models.Registry{
		"fig3": {ID: "fig3", Caption: "Legacy figure", Type: models.TypeFigure},
	}
	if err := Save(reg, dir); err != nil {
		t.Fatal(err)
	}
	// Rename canonical to legacy; LoadDir must still find and parse it.
	if err := os.Rename(filepath.Join(dir, CanonicalName), filepath.Join(dir, LegacyName)); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if loaded["fig3"] == nil || loaded["fig3"].Caption != "Legacy figure" {
		t.Errorf("legacy sidecar not loaded: %+v", loaded)
	}
}
