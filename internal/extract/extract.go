// Package extract locates figures, tables and subfigure panels in a paper's
// renderings and turns them into FigureRecords with canonical identifiers.
// Two strategies implement the same Extractor interface: the ar5iv HTML
// extractor (primary) and the PDF extractor (fallback). The Orchestrator
// sequences them and owns sidecar persistence and remote upload.
package extract

import (
	"context"
	"image"

	"github.com/paperlens/paperlens/models"
)

const (
	// DefaultDPI is the rasterization resolution for PDF pages.
	DefaultDPI = 300

	// MinImageDim filters PDF image objects below this pixel dimension;
	// they are almost always icons or rules, not figures. The HTML path
	// does no size filtering: ar5iv markup is far less noisy.
	MinImageDim = 100

	// regionMargin expands the figure/caption bounding-box union before
	// cropping it from a rasterized page.
	regionMargin = 10
)

// Extractor is the single contract both extraction strategies implement.
// An empty registry with a nil error means the source had no extractable
// content; the orchestrator treats it as "try the next strategy".
type Extractor interface {
	Extract(ctx context.Context, src models.PaperSource, outDir string) (models.Registry, error)
}

// PageImage is one rasterized PDF page.
type PageImage struct {
	PageNr int
	Image  image.Image
}

// Rasterizer renders PDF pages to images. Rendering internals live outside
// the core; this is the collaborator seam.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, dpi int) ([]PageImage, error)
}

// Region is a detected figure region on a PDF page, with the caption block
// it is structurally linked to. Coordinates are pixels at the rasterization
// DPI.
type Region struct {
	PageNr  int
	Figure  image.Rectangle
	Caption image.Rectangle
	Number  int
	IsTable bool
}

// RegionSource supplies structural figure/caption linkage for a PDF when an
// external detector is available. Without one the PDF extractor falls back
// to positional pairing.
type RegionSource interface {
	Regions(ctx context.Context, pdfPath string) ([]Region, error)
}

// runContext carries per-run extraction state: the paper being processed, the
// base for resolving relative media references, the output directory, and
// the accumulated registry. One instance per extraction call, never shared.
type runContext struct {
	paperID  string
	baseURL  string
	outDir   string
	registry models.Registry
}

func newRunContext(paperID, baseURL, outDir string) *runContext {
	return &runContext{
		paperID:  paperID,
		baseURL:  baseURL,
		outDir:   outDir,
		registry: make(models.Registry),
	}
}

// add inserts a record, refusing duplicate ids.
func (rc *runContext) add(rec *models.FigureRecord) bool {
	if _, exists := rc.registry[rec.ID]; exists {
		return false
	}
	rc.registry[rec.ID] = rec
	return true
}
