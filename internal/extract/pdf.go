package extract

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	ltpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/paperlens/paperlens/internal/ident"
	"github.com/paperlens/paperlens/internal/logger"
	"github.com/paperlens/paperlens/models"
)

// PDFExtractor is the fallback strategy for papers without a usable ar5iv
// rendering. It pairs embedded image objects with caption text scanned from
// page content. When a rasterizer and a region source are wired in, cropped
// page regions are preferred over raw image objects.
//
// The PDF path never produces table records: table content in a PDF stream
// is not recoverable as structured rows, and a record without real content
// would be worse than none.
type PDFExtractor struct {
	raster  Rasterizer
	regions RegionSource
	dpi     int
	minDim  int
	log     logger.Logger
}

// NewPDFExtractor creates a PDF extractor. Both raster and regions may be
// nil; the extractor then relies on image objects and positional pairing.
func NewPDFExtractor(raster Rasterizer, regions RegionSource, log logger.Logger) *PDFExtractor {
	return &PDFExtractor{
		raster:  raster,
		regions: regions,
		dpi:     DefaultDPI,
		minDim:  MinImageDim,
		log:     log,
	}
}

// pdfCaption is one caption marker found in page text, in document order.
type pdfCaption struct {
	isTable bool
	num     int
	text    string
	used    bool
}

// captionRe anchors on "Figure N:" / "Table N.". The delimiter after the
// number filters out in-text references ("see Figure 3 for ...").
var captionRe = regexp.MustCompile(`(?i)\b(Figure|Table)\s+(\d+)\s*[:.]\s*`)

// Extract scans captions and extracts figures, preferring region crops when
// detectors are available. Returns an empty registry when nothing pairs up.
func (e *PDFExtractor) Extract(ctx context.Context, src models.PaperSource, outDir string) (models.Registry, error) {
	if src.PDFPath == "" {
		return nil, fmt.Errorf("no pdf source for %s", src.PaperID)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	rc := newRunContext(src.PaperID, "", outDir)
	caps := e.scanCaptions(src.PDFPath)

	if e.raster != nil && e.regions != nil {
		if ok := e.extractRegions(ctx, rc, src, caps); ok {
			return rc.registry, nil
		}
		e.log.Info("Region extraction yielded nothing for %s, trying image objects", src.PaperID)
	}

	if err := e.extractImageObjects(ctx, rc, src, caps); err != nil {
		return nil, err
	}
	return rc.registry, nil
}

// scanCaptions walks page text with ledongthuc/pdf and collects caption
// markers in document order. The first occurrence of a number wins; later
// repeats (cross-references that happen to match) are ignored. Pages that
// fail to yield text are skipped.
func (e *PDFExtractor) scanCaptions(pdfPath string) []*pdfCaption {
	f, r, err := ltpdf.Open(pdfPath)
	if err != nil {
		e.log.Warn("Caption scan cannot open %s: %v", pdfPath, err)
		return nil
	}
	defer f.Close()

	var caps []*pdfCaption
	seen := make(map[string]bool)

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.log.Debug("Caption scan skipping page %d: %v", i, err)
			continue
		}
		for _, c := range parseCaptions(text) {
			key := captionKey(c.isTable, c.num)
			if seen[key] {
				continue
			}
			seen[key] = true
			caps = append(caps, c)
		}
	}
	return caps
}

func captionKey(isTable bool, num int) string {
	return ident.PositionalID(isTable, num)
}

// parseCaptions finds caption markers in one page's text. Caption text runs
// from the marker to the next marker or a length cap, whichever comes first.
func parseCaptions(text string) []*pdfCaption {
	const maxCaptionLen = 400

	matches := captionRe.FindAllStringSubmatchIndex(text, -1)
	caps := make([]*pdfCaption, 0, len(matches))
	for i, m := range matches {
		kind := strings.ToLower(text[m[2]:m[3]])
		num, err := strconv.Atoi(text[m[4]:m[5]])
		if err != nil || num == 0 {
			continue
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := text[m[1]:end]
		if len(body) > maxCaptionLen {
			body = body[:maxCaptionLen]
		}
		caps = append(caps, &pdfCaption{
			isTable: kind == "table",
			num:     num,
			text:    strings.TrimSpace(body),
		})
	}
	return caps
}

// nextFigureCaption consumes the next unused figure caption from the queue.
// Table captions never pair with images.
func nextFigureCaption(caps []*pdfCaption) *pdfCaption {
	for _, c := range caps {
		if !c.isTable && !c.used {
			c.used = true
			return c
		}
	}
	return nil
}

// extractImageObjects pulls embedded image XObjects page by page and pairs
// accepted images positionally with scanned figure captions. Images that
// cannot pair with a caption are dropped: an unlabeled image cannot carry a
// reliable id.
func (e *PDFExtractor) extractImageObjects(ctx context.Context, rc *runContext, src models.PaperSource, caps []*pdfCaption) error {
	f, err := os.Open(src.PDFPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src.PDFPath, err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pages, err := api.ExtractImagesRaw(f, nil, conf)
	if err != nil {
		return fmt.Errorf("extracting images from %s: %w", src.PDFPath, err)
	}

	for _, pageImages := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		objNrs := make([]int, 0, len(pageImages))
		for objNr := range pageImages {
			objNrs = append(objNrs, objNr)
		}
		sort.Ints(objNrs)

		for _, objNr := range objNrs {
			img := pageImages[objNr]
			raw, err := io.ReadAll(img)
			if err != nil {
				e.log.Debug("Skipping image obj %d: %v", objNr, err)
				continue
			}
			w, h, err := imageDims(raw)
			if err != nil {
				e.log.Debug("Skipping image obj %d: undecodable: %v", objNr, err)
				continue
			}
			if w < e.minDim || h < e.minDim {
				continue
			}

			capt := nextFigureCaption(caps)
			if capt == nil {
				e.log.Debug("Dropping unpaired image obj %d on page %d", objNr, img.PageNr)
				continue
			}
			e.addFigure(rc, capt, raw)
		}
	}
	return nil
}

func (e *PDFExtractor) addFigure(rc *runContext, capt *pdfCaption, png []byte) {
	id := ident.PositionalID(false, capt.num)
	data, err := toPNG(png)
	if err != nil {
		e.log.Warn("Skipping %s: %v", id, err)
		return
	}
	path, err := writeImage(rc.outDir, id, data)
	if err != nil {
		e.log.Warn("Skipping %s: %v", id, err)
		return
	}
	rec := &models.FigureRecord{
		ID:        id,
		Caption:   capt.text,
		Type:      models.TypeFigure,
		LocalPath: path,
	}
	if !rc.add(rec) {
		e.log.Warn("Duplicate figure id %s from caption scan, skipping", id)
	}
}

// extractRegions crops detected figure regions from rasterized pages. Table
// regions are skipped. Reports whether anything was produced.
func (e *PDFExtractor) extractRegions(ctx context.Context, rc *runContext, src models.PaperSource, caps []*pdfCaption) bool {
	pages, err := e.raster.Rasterize(ctx, src.PDFPath, e.dpi)
	if err != nil {
		e.log.Warn("Rasterizing %s failed: %v", src.PDFPath, err)
		return false
	}
	regions, err := e.regions.Regions(ctx, src.PDFPath)
	if err != nil {
		e.log.Warn("Region detection for %s failed: %v", src.PDFPath, err)
		return false
	}

	pageMap := make(map[int]image.Image, len(pages))
	for _, p := range pages {
		pageMap[p.PageNr] = p.Image
	}

	for _, region := range regions {
		if region.IsTable {
			e.log.Debug("Skipping table region on page %d", region.PageNr)
			continue
		}
		page, ok := pageMap[region.PageNr]
		if !ok {
			continue
		}
		box := region.Figure.Union(region.Caption).Inset(-regionMargin).Intersect(page.Bounds())
		if box.Empty() {
			continue
		}
		capt := regionCaption(caps, region.Number)
		if capt == nil {
			e.log.Debug("Dropping region without caption on page %d", region.PageNr)
			continue
		}

		data, err := encodePNG(cropImage(page, box))
		if err != nil {
			e.log.Warn("Encoding region crop failed: %v", err)
			continue
		}
		e.addFigure(rc, capt, data)
	}
	return len(rc.registry) > 0
}

// regionCaption matches a detected region to the scanned caption with the
// same number; a region whose number never appeared in text falls back to
// positional consumption.
func regionCaption(caps []*pdfCaption, num int) *pdfCaption {
	if num > 0 {
		for _, c := range caps {
			if !c.isTable && c.num == num && !c.used {
				c.used = true
				return c
			}
		}
	}
	return nextFigureCaption(caps)
}

func cropImage(src image.Image, box image.Rectangle) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Draw(dst, dst.Bounds(), src, box.Min, draw.Src)
	return dst
}
