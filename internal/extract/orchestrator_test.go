package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paperlens/paperlens/internal/logger"
	"github.com/paperlens/paperlens/internal/metastore"
	"github.com/paperlens/paperlens/internal/remote"
	"github.com/paperlens/paperlens/models"
)

// stubExtractor writes the configured figures into outDir, like a real
// strategy would.
type stubExtractor struct {
	figs  map[string]string // id -> caption
	err   error
	png   []byte
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, _ models.PaperSource, outDir string) (models.Registry, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	registry := make(models.Registry)
	for id, capt := range s.figs {
		path := filepath.Join(outDir, id+".png")
		if err := os.WriteFile(path, s.png, 0644); err != nil {
			return nil, err
		}
		registry[id] = &models.FigureRecord{ID: id, Caption: capt, Type: models.TypeFigure, LocalPath: path}
	}
	return registry, nil
}

func TestOrchestratorPrimaryWins(t *testing.T) {
	dir := t.TempDir()
	png := testPNG(t)
	primary := &stubExtractor{figs: map[string]string{"fig1": "one"}, png: png}
	fallback := &stubExtractor{figs: map[string]string{"fig9": "never"}, png: png}
	o := NewOrchestrator(primary, fallback, nil, logger.NewNoOp())

	registry, err := o.Run(context.Background(), models.PaperSource{PaperID: "p1", PDFPath: "x.pdf"}, dir, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(registry) != 1 || registry["fig1"] == nil {
		t.Fatalf("registry = %v", registry)
	}
	if fallback.calls != 0 {
		t.Error("fallback ran despite primary success")
	}
	if _, ok := metastore.FindSidecar(dir); !ok {
		t.Error("sidecar not written")
	}
	if _, err := os.Stat(filepath.Join(dir, ThumbnailName)); err != nil {
		t.Errorf("thumbnail not written: %v", err)
	}
}

func TestOrchestratorFallsBack(t *testing.T) {
	png := testPNG(t)
	tests := []struct {
		name    string
		primary *stubExtractor
	}{
		{"primary empty", &stubExtractor{png: png}},
		{"primary error", &stubExtractor{err: errors.New("fetch failed")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := t.TempDir()
			fallback := &stubExtractor{figs: map[string]string{"fig1": "from pdf"}, png: png}
			o := NewOrchestrator(tt.primary, fallback, nil, logger.NewNoOp())

			registry, err := o.Run(context.Background(), models.PaperSource{PaperID: "p1", PDFPath: "x.pdf"}, sub, false)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if registry["fig1"] == nil || registry["fig1"].Caption != "from pdf" {
				t.Errorf("registry = %v", registry)
			}
			if fallback.calls != 1 {
				t.Errorf("fallback calls = %d", fallback.calls)
			}
		})
	}
}

func TestOrchestratorNoPDFSkipsFallback(t *testing.T) {
	dir := t.TempDir()
	primary := &stubExtractor{png: testPNG(t)}
	fallback := &stubExtractor{figs: map[string]string{"fig1": "x"}, png: testPNG(t)}
	o := NewOrchestrator(primary, fallback, nil, logger.NewNoOp())

	registry, err := o.Run(context.Background(), models.PaperSource{PaperID: "p1"}, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(registry) != 0 {
		t.Errorf("registry = %v", registry)
	}
	if fallback.calls != 0 {
		t.Error("fallback ran without a PDF source")
	}
}

func TestOrchestratorBothFailPersistsEmpty(t *testing.T) {
	dir := t.TempDir()
	primary := &stubExtractor{err: errors.New("html down")}
	fallback := &stubExtractor{err: errors.New("pdf broken")}
	o := NewOrchestrator(primary, fallback, nil, logger.NewNoOp())
	src := models.PaperSource{PaperID: "p1", PDFPath: "x.pdf"}

	registry, err := o.Run(context.Background(), src, dir, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(registry) != 0 {
		t.Errorf("registry = %v", registry)
	}

	// The empty result is settled: the next run short-circuits on the
	// sidecar and never re-invokes a strategy.
	registry, err = o.Run(context.Background(), src, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(registry) != 0 {
		t.Errorf("cached registry = %v", registry)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("strategies re-ran: primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestOrchestratorIdempotentWithoutForce(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{responses: map[string][]byte{
		docURL: []byte(ar5ivDoc(t)),
	}}
	primary := NewHTMLExtractor(fetcher, logger.NewNoOp())
	o := NewOrchestrator(primary, nil, nil, logger.NewNoOp())
	src := models.PaperSource{PaperID: "2401.00001", HTMLURL: docURL}

	first, err := o.Run(context.Background(), src, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 3 {
		t.Fatalf("first run registry = %v", first)
	}
	afterFirst := fetcher.calls.Load()

	second, err := o.Run(context.Background(), src, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 3 {
		t.Fatalf("second run registry = %v", second)
	}
	if fetcher.calls.Load() != afterFirst {
		t.Errorf("second run hit the network: %d calls, want %d", fetcher.calls.Load(), afterFirst)
	}
}

func TestOrchestratorForceRemovesStale(t *testing.T) {
	dir := t.TempDir()
	png := testPNG(t)
	primary := &stubExtractor{figs: map[string]string{"fig1": "one", "fig2": "two"}, png: png}
	o := NewOrchestrator(primary, nil, nil, logger.NewNoOp())
	src := models.PaperSource{PaperID: "p1"}

	if _, err := o.Run(context.Background(), src, dir, false); err != nil {
		t.Fatal(err)
	}

	// The paper shrank; force must re-extract and drop fig2's image.
	primary.figs = map[string]string{"fig1": "one"}
	registry, err := o.Run(context.Background(), src, dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if primary.calls != 2 {
		t.Errorf("primary calls = %d, want 2", primary.calls)
	}
	if len(registry) != 1 {
		t.Errorf("registry = %v", registry)
	}
	if _, err := os.Stat(filepath.Join(dir, "fig2.png")); !os.IsNotExist(err) {
		t.Error("stale fig2.png survived force run")
	}
	if _, err := os.Stat(filepath.Join(dir, "fig1.png")); err != nil {
		t.Errorf("fig1.png missing: %v", err)
	}
}

func TestOrchestratorUploadsToStore(t *testing.T) {
	dir := t.TempDir()
	primary := &stubExtractor{figs: map[string]string{"fig1": "one"}, png: testPNG(t)}
	store := remote.NewMemoryStore()
	o := NewOrchestrator(primary, nil, store, logger.NewNoOp())

	registry, err := o.Run(context.Background(), models.PaperSource{PaperID: "p1"}, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if !store.Has(remote.Key("p1", "fig1")) {
		t.Error("fig1 not uploaded")
	}
	if registry["fig1"].RemotePath == "" {
		t.Error("RemotePath not recorded")
	}

	// The re-saved sidecar carries the remote path.
	loaded, err := metastore.LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded["fig1"].RemotePath != registry["fig1"].RemotePath {
		t.Errorf("persisted RemotePath = %q", loaded["fig1"].RemotePath)
	}
}
