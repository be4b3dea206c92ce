package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/paperlens/paperlens/internal/caption"
	"github.com/paperlens/paperlens/internal/fetch"
	"github.com/paperlens/paperlens/internal/ident"
	"github.com/paperlens/paperlens/internal/logger"
	"github.com/paperlens/paperlens/models"
)

// HTMLExtractor is the primary strategy, working off the ar5iv rendering of
// a paper. It understands ar5iv's figure/table/panel markup and resolves
// images from data URIs, inline SVG, and remote references.
type HTMLExtractor struct {
	fetcher fetch.Fetcher
	log     logger.Logger
}

// NewHTMLExtractor creates an HTML extractor with its collaborators.
func NewHTMLExtractor(fetcher fetch.Fetcher, log logger.Logger) *HTMLExtractor {
	return &HTMLExtractor{fetcher: fetcher, log: log}
}

// Extract fetches the ar5iv document and walks its figure and table blocks
// in document order. Per-block failures are logged and skipped; an empty
// registry is a valid result and signals the orchestrator to try the PDF
// fallback.
func (e *HTMLExtractor) Extract(ctx context.Context, src models.PaperSource, outDir string) (models.Registry, error) {
	if src.HTMLURL == "" {
		return nil, fmt.Errorf("no html source for %s", src.PaperID)
	}
	data, err := e.fetcher.Bytes(ctx, src.HTMLURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", src.HTMLURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", src.HTMLURL, err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	rc := newRunContext(src.PaperID, src.HTMLURL, outDir)
	figIdx, tabIdx := 0, 0

	doc.Find("figure, table").Each(func(_ int, s *goquery.Selection) {
		if isPanel(s) {
			return
		}
		if s.Is("table") {
			// Tables wrapped in a figure block are handled through it.
			if s.ParentsFiltered("figure").Length() > 0 {
				return
			}
			tabIdx++
			e.processTable(rc, s, s, tabIdx)
			return
		}
		if isTableBlock(s) {
			tabIdx++
			e.processTable(rc, s, s.Find("table").First(), tabIdx)
			return
		}
		figIdx++
		e.processFigure(ctx, rc, s, figIdx)
	})

	return rc.registry, nil
}

// isPanel reports whether a block is a subfigure panel nested inside a
// parent figure. Panels are only processed through their parent.
func isPanel(s *goquery.Selection) bool {
	if !s.Is("figure") {
		return false
	}
	if s.HasClass("ltx_figure_panel") || s.HasClass("ltx_subfigure") {
		return true
	}
	return s.ParentsFiltered("figure").Length() > 0
}

// isTableBlock reports whether a figure block actually wraps a table.
func isTableBlock(s *goquery.Selection) bool {
	if s.HasClass("ltx_table") {
		return true
	}
	return s.Find("table").Length() > 0 && s.Find("img, svg").Length() == 0 && s.Find("figure").Length() == 0
}

// blockID resolves a block's canonical id: structured element id first,
// caption-derived number second, positional index last. The structured id
// wins when both are available; captions are free text and less reliable.
func blockID(s *goquery.Selection, capText string, isTable bool, idx int) string {
	if raw, ok := s.Attr("id"); ok {
		if id, ok := ident.NormalizeRawID(raw); ok {
			return id
		}
	}
	if n, ok := caption.Number(capText); ok {
		return ident.PositionalID(isTable, n)
	}
	return ident.PositionalID(isTable, idx)
}

func (e *HTMLExtractor) processTable(rc *runContext, block, table *goquery.Selection, idx int) {
	capText := blockCaption(block)
	content, ok := markdownTable(table)
	if !ok {
		e.log.Debug("Skipping table block %d: no parseable rows", idx)
		return
	}
	id := blockID(block, capText, true, idx)
	rec := &models.FigureRecord{
		ID:      id,
		Caption: caption.CleanLabel(capText),
		Type:    models.TypeTable,
		Content: content,
	}
	if !rc.add(rec) {
		e.log.Warn("Duplicate table id %s, skipping", id)
	}
}

func (e *HTMLExtractor) processFigure(ctx context.Context, rc *runContext, block *goquery.Selection, idx int) {
	capText := blockCaption(block)
	id := blockID(block, capText, false, idx)
	panels := block.Find("figure")

	if panels.Length() == 0 {
		data, err := e.resolveImage(ctx, rc, block)
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
			Caption:   caption.CleanLabel(capText),
			Type:      models.TypeFigure,
			LocalPath: path,
		}
		if !rc.add(rec) {
			e.log.Warn("Duplicate figure id %s, skipping", id)
		}
		return
	}

	rec := &models.FigureRecord{
		ID:            id,
		Caption:       caption.CleanLabel(capText),
		Type:          models.TypeFigure,
		HasSubfigures: true,
	}

	seq := 0
	used := make(map[string]bool)
	panels.Each(func(_ int, panel *goquery.Selection) {
		// Explicit panel suffixes and sequence positions can collide when
		// panels mix both; a taken letter bumps to the next free one.
		letter := ident.SubfigureLetter(panel.AttrOr("id", ""), seq)
		for n := seq; used[letter]; n++ {
			letter = ident.SubfigureLetter("", n)
		}
		used[letter] = true
		seq++
		data, err := e.resolveImage(ctx, rc, panel)
		if err != nil {
			e.log.Warn("Skipping subfigure %s of %s: %v", letter, id, err)
			return
		}
		if _, err := writeImage(rc.outDir, ident.SubfigureKey(id, letter), data); err != nil {
			e.log.Warn("Skipping subfigure %s of %s: %v", letter, id, err)
			return
		}
		rec.Subfigures = append(rec.Subfigures, models.Subfigure{
			ID:      letter,
			Caption: caption.CleanLabel(panelCaption(panel)),
		})
	})

	// A parent with zero surviving children is not stored.
	if len(rec.Subfigures) == 0 {
		e.log.Warn("Dropping %s: no subfigure images resolved", id)
		return
	}

	// The parent may carry its own image outside the panels; optional.
	if data, err := e.resolveImage(ctx, rc, block); err == nil {
		if path, err := writeImage(rc.outDir, id, data); err == nil {
			rec.LocalPath = path
		}
	}

	if !rc.add(rec) {
		e.log.Warn("Duplicate figure id %s, skipping", id)
	}
}

// blockCaption extracts the block's own caption text: the first caption
// node that is not nested inside a subfigure panel.
func blockCaption(block *goquery.Selection) string {
	var node *html.Node
	block.Find("figcaption, caption").EachWithBreak(func(_ int, c *goquery.Selection) bool {
		closest := c.Closest("figure")
		if closest.Length() == 0 || closest.Nodes[0] == block.Nodes[0] {
			node = c.Nodes[0]
			return false
		}
		return true
	})
	return caption.Extract(node)
}

// panelCaption extracts a panel's own caption text.
func panelCaption(panel *goquery.Selection) string {
	c := panel.Find("figcaption").First()
	if c.Length() == 0 {
		return ""
	}
	return caption.Extract(c.Nodes[0])
}

// markdownTable renders a table element as a Markdown table: first row as
// header, dash separator, remaining rows as data. Cells go through the
// caption extractor so inline math survives. A table with no rows, or whose
// first row has no cells, yields nothing.
func markdownTable(table *goquery.Selection) (string, bool) {
	if table == nil || table.Length() == 0 {
		return "", false
	}
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return "", false
	}

	header := collectCells(rows.First())
	if len(header) == 0 {
		return "", false
	}

	var lines []string
	lines = append(lines, "| "+strings.Join(header, " | ")+" |")
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	lines = append(lines, "| "+strings.Join(sep, " | ")+" |")

	rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
		cells := collectCells(row)
		if len(cells) > 0 {
			lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		}
	})

	return strings.Join(lines, "\n"), true
}

func collectCells(row *goquery.Selection) []string {
	var cells []string
	row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, caption.Extract(cell.Nodes[0]))
	})
	return cells
}

// resolveImage resolves the image belonging directly to a block or panel,
// trying in order: inline data URI, inline SVG, remote reference resolved
// against the paper's base location. A failed source falls through to the
// next one; only when every source is exhausted does the block fail.
// Returns PNG bytes.
func (e *HTMLExtractor) resolveImage(ctx context.Context, rc *runContext, sel *goquery.Selection) ([]byte, error) {
	var src string
	if img := ownedElement(sel, "img"); img != nil {
		src = attrVal(img, "src")
	}

	if fetch.IsDataURI(src) {
		raw, err := decodeDataURI(src)
		if err == nil {
			return toPNG(raw)
		}
		e.log.Debug("Inline data URI unusable, trying next source: %v", err)
	}

	if svg := ownedElement(sel, "svg"); svg != nil {
		var buf bytes.Buffer
		if err := html.Render(&buf, svg); err != nil {
			e.log.Debug("Serializing inline svg failed, trying next source: %v", err)
		} else if data, err := rasterizeSVG(buf.String()); err == nil {
			return data, nil
		} else {
			e.log.Debug("Rasterizing inline svg failed, trying next source: %v", err)
		}
	}

	if src != "" && !fetch.IsDataURI(src) {
		resolved, err := resolveRef(rc.baseURL, src)
		if err != nil {
			return nil, err
		}
		raw, err := e.fetcher.Bytes(ctx, resolved)
		if err != nil {
			return nil, fmt.Errorf("fetching image %s: %w", resolved, err)
		}
		return toPNG(raw)
	}

	return nil, fmt.Errorf("no image in block")
}

// ownedElement finds the first tag inside sel that belongs to sel itself
// rather than to a nested figure (a panel's image belongs to the panel).
func ownedElement(sel *goquery.Selection, tag string) *html.Node {
	var node *html.Node
	sel.Find(tag).EachWithBreak(func(_ int, c *goquery.Selection) bool {
		closest := c.Closest("figure")
		if closest.Length() == 0 || closest.Nodes[0] == sel.Nodes[0] {
			node = c.Nodes[0]
			return false
		}
		return true
	})
	return node
}

func attrVal(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
