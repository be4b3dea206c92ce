// Package resolve turns display figure references ("3", "5.a") into
// renderable figures. Resolution is layered: the paper's own registry first,
// then the remote store, then other locally cached registries, and finally a
// synthesized label. The resolver degrades instead of failing: the only
// error it returns is a reference that does not parse at all.
package resolve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/paperlens/paperlens/internal/ident"
	"github.com/paperlens/paperlens/internal/logger"
	"github.com/paperlens/paperlens/internal/metastore"
	"github.com/paperlens/paperlens/internal/remote"
	"github.com/paperlens/paperlens/models"
)

// Resolver looks up figures across the local data tree and the remote store.
// store may be nil; dataRoot may be empty when no local tree exists.
type Resolver struct {
	store    remote.Store
	dataRoot string
	log      logger.Logger
}

// New creates a Resolver.
func New(store remote.Store, dataRoot string, log logger.Logger) *Resolver {
	return &Resolver{store: store, dataRoot: dataRoot, log: log}
}

// candidateIDs lists the storage ids a bare display number may refer to, in
// preference order. Main-body figures outnumber everything else.
func candidateIDs(num int) []string {
	n := fmt.Sprintf("%d", num)
	return []string{"fig" + n, "appendix_fig" + n, "tab" + n, "appendix_tab" + n}
}

// Resolve maps a display reference to a figure. registry is the paper's own
// registry and may be nil when the caller has none loaded.
func (r *Resolver) Resolve(ctx context.Context, display, paperID string, registry models.Registry) (*models.ResolvedFigure, error) {
	num, letter, ok := ident.ParseDisplayID(display)
	if !ok {
		return nil, fmt.Errorf("unparseable figure reference %q", display)
	}
	normalized, _ := ident.ToDisplayID(display)
	if letter != "" {
		return r.resolveSubfigure(ctx, normalized, paperID, registry, num, letter), nil
	}
	return r.resolveMain(ctx, normalized, paperID, registry, num), nil
}

func (r *Resolver) resolveMain(ctx context.Context, display, paperID string, registry models.Registry, num int) *models.ResolvedFigure {
	for _, id := range candidateIDs(num) {
		rec, ok := registry[id]
		if !ok {
			continue
		}
		return &models.ResolvedFigure{
			DisplayID:  display,
			URL:        r.recordURL(ctx, paperID, id, rec),
			Caption:    rec.Caption,
			Type:       rec.Type,
			Subfigures: rec.Subfigures,
		}
	}

	caption, url := r.lookupMissing(ctx, paperID, num, "")
	if caption == "" {
		caption = fmt.Sprintf("Figure %d", num)
	}
	return &models.ResolvedFigure{
		DisplayID: display,
		URL:       url,
		Caption:   caption,
		Type:      models.TypeFigure,
	}
}

func (r *Resolver) resolveSubfigure(ctx context.Context, display, paperID string, registry models.Registry, num int, letter string) *models.ResolvedFigure {
	// Only figures have panels.
	for _, parentID := range []string{fmt.Sprintf("fig%d", num), fmt.Sprintf("appendix_fig%d", num)} {
		rec, ok := registry[parentID]
		if !ok {
			continue
		}
		rf := &models.ResolvedFigure{
			DisplayID:     display,
			ParentCaption: rec.Caption,
			Type:          models.TypeFigure,
			URL:           r.subfigureURL(ctx, paperID, parentID, letter),
		}
		for _, sf := range rec.Subfigures {
			if sf.ID == letter {
				rf.Caption = sf.Caption
				break
			}
		}
		if rf.Caption == "" {
			rf.Caption = fmt.Sprintf("Figure %d(%s)", num, letter)
		}
		return rf
	}

	parentCaption, _ := r.lookupMissing(ctx, paperID, num, letter)
	rf := &models.ResolvedFigure{
		DisplayID:     display,
		ParentCaption: parentCaption,
		Caption:       fmt.Sprintf("Figure %d(%s)", num, letter),
		Type:          models.TypeFigure,
	}
	if r.store != nil {
		subID := ident.SubfigureKey(fmt.Sprintf("fig%d", num), letter)
		if url, ok := r.store.GetURL(ctx, paperID, subID); ok {
			rf.URL = url
		}
		if capt, ok := r.store.GetCaption(ctx, paperID, subID); ok && capt != "" {
			rf.Caption = capt
		}
	}
	return rf
}

// recordURL picks the best URL for a record: recorded remote path, then the
// local static route, then a live remote lookup.
func (r *Resolver) recordURL(ctx context.Context, paperID, id string, rec *models.FigureRecord) string {
	if rec.RemotePath != "" {
		return rec.RemotePath
	}
	if rec.LocalPath != "" {
		return staticURL(paperID, filepath.Base(rec.LocalPath))
	}
	if r.store != nil {
		if url, ok := r.store.GetURL(ctx, paperID, id); ok {
			return url
		}
	}
	return ""
}

func (r *Resolver) subfigureURL(ctx context.Context, paperID, parentID, letter string) string {
	subID := ident.SubfigureKey(parentID, letter)
	if r.dataRoot != "" {
		local := filepath.Join(r.dataRoot, paperID, subID+".png")
		if _, err := os.Stat(local); err == nil {
			return staticURL(paperID, subID+".png")
		}
	}
	if r.store != nil {
		if url, ok := r.store.GetURL(ctx, paperID, subID); ok {
			return url
		}
	}
	return ""
}

func staticURL(paperID, name string) string {
	return "/static/" + paperID + "/" + name
}

// lookupMissing is the fallback ladder for a figure absent from the paper's
// own registry: remote metadata, then other cached registries on disk, then
// any remote figure id carrying the same number.
func (r *Resolver) lookupMissing(ctx context.Context, paperID string, num int, letter string) (caption, url string) {
	ids := candidateIDs(num)

	if r.store != nil {
		for _, id := range ids {
			capt, capOK := r.store.GetCaption(ctx, paperID, id)
			u, urlOK := r.store.GetURL(ctx, paperID, id)
			if capOK || urlOK {
				r.log.Debug("Resolved %s via remote store", id)
				return capt, u
			}
		}
	}

	if caption, url = r.scanCached(ctx, paperID, ids); caption != "" || url != "" {
		return caption, url
	}

	if r.store != nil {
		stored, err := r.store.FigureIDs(ctx, paperID)
		if err == nil {
			for _, id := range stored {
				n, kind, _, l, ok := ident.ParseCanonical(id)
				if !ok || kind != "fig" || n != num || l != letter {
					continue
				}
				capt, _ := r.store.GetCaption(ctx, paperID, id)
				u, _ := r.store.GetURL(ctx, paperID, id)
				r.log.Debug("Resolved %s via remote id scan", id)
				return capt, u
			}
		}
	}

	return "", ""
}

// scanCached looks through locally cached registries, the paper's own
// directory first.
func (r *Resolver) scanCached(ctx context.Context, paperID string, ids []string) (caption, url string) {
	if r.dataRoot == "" {
		return "", ""
	}
	dirs := []string{paperID}
	if entries, err := os.ReadDir(r.dataRoot); err == nil {
		for _, entry := range entries {
			if entry.IsDir() && entry.Name() != paperID {
				dirs = append(dirs, entry.Name())
			}
		}
	}
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return "", ""
		}
		registry, err := metastore.LoadDir(filepath.Join(r.dataRoot, d))
		if err != nil {
			continue
		}
		for _, id := range ids {
			rec, ok := registry[id]
			if !ok {
				continue
			}
			r.log.Debug("Resolved %s via cached registry %s", id, d)
			if rec.RemotePath != "" {
				return rec.Caption, rec.RemotePath
			}
			if rec.LocalPath != "" && d == paperID {
				return rec.Caption, staticURL(paperID, filepath.Base(rec.LocalPath))
			}
			return rec.Caption, ""
		}
	}
	return "", ""
}

// placeholderRe matches summarizer output tokens: <FIGURE_ID>3</FIGURE_ID>,
// <FIGURE_ID>5.a</FIGURE_ID>.
var placeholderRe = regexp.MustCompile(`<FIGURE_ID>\s*([0-9]+(?:[._][a-zA-Z])?)\s*</FIGURE_ID>`)

// Substitute replaces placeholder tokens in summarizer markdown with figure
// embeds. Each distinct token resolves once. Tokens that cannot be parsed
// are removed rather than left in the output.
func (r *Resolver) Substitute(ctx context.Context, markdown, paperID string, registry models.Registry) string {
	cache := make(map[string]string)
	return placeholderRe.ReplaceAllStringFunc(markdown, func(tok string) string {
		m := placeholderRe.FindStringSubmatch(tok)
		display := m[1]
		if out, ok := cache[display]; ok {
			return out
		}
		rf, err := r.Resolve(ctx, display, paperID, registry)
		var out string
		if err != nil {
			r.log.Warn("Dropping figure token %q: %v", display, err)
			out = ""
		} else {
			out = renderEmbed(rf)
		}
		cache[display] = out
		return out
	})
}

// renderEmbed formats one resolved figure as markdown.
func renderEmbed(rf *models.ResolvedFigure) string {
	caption := strings.TrimSpace(rf.Caption)
	if rf.Type == models.TypeTable {
		if caption != "" {
			return "**" + caption + "**"
		}
		return ""
	}
	if rf.URL == "" {
		if caption != "" {
			return "*" + caption + "*"
		}
		return ""
	}
	alt := strings.ReplaceAll(caption, "]", ")")
	alt = strings.ReplaceAll(alt, "[", "(")
	if caption != "" {
		return fmt.Sprintf("![%s](%s)\n*%s*", alt, rf.URL, caption)
	}
	return fmt.Sprintf("![figure](%s)", rf.URL)
}
