package extract

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	xdraw "golang.org/x/image/draw"

	"github.com/paperlens/paperlens/internal/ident"
	"github.com/paperlens/paperlens/models"
)

// ThumbnailName is the derived preview image written next to the sidecar.
const ThumbnailName = "thumbnail.png"

// DefaultThumbWidth bounds the thumbnail's width in pixels.
const DefaultThumbWidth = 600

// SelectThumbnail picks which image represents the paper: the lowest-numbered
// main-body figure, preferring its own image and falling back to its first
// subfigure alphabetically. Tables and appendix figures are only considered
// when nothing else exists. Returns the image path, or "" when the registry
// holds no images at all.
func SelectThumbnail(registry models.Registry, dir string) string {
	type candidate struct {
		appendix bool
		table    bool
		num      int
		path     string
	}
	var cands []candidate

	for id, rec := range registry {
		num, kind, appendix, _, ok := ident.ParseCanonical(id)
		if !ok {
			continue
		}
		path := rec.LocalPath
		if path == "" && len(rec.Subfigures) > 0 {
			letters := make([]string, 0, len(rec.Subfigures))
			for _, sf := range rec.Subfigures {
				letters = append(letters, sf.ID)
			}
			sort.Strings(letters)
			for _, l := range letters {
				sub := filepath.Join(dir, ident.SubfigureKey(id, l)+".png")
				if _, err := os.Stat(sub); err == nil {
					path = sub
					break
				}
			}
		}
		if path == "" {
			continue
		}
		cands = append(cands, candidate{
			appendix: appendix,
			table:    kind == "tab",
			num:      num,
			path:     path,
		})
	}
	if len(cands) == 0 {
		return ""
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.table != b.table {
			return !a.table
		}
		if a.appendix != b.appendix {
			return !a.appendix
		}
		return a.num < b.num
	})
	return cands[0].path
}

// Thumbnail derives and writes the paper thumbnail, downscaled to maxWidth
// when wider. Returns the written path, or "" with a nil error when there is
// nothing to derive from.
func Thumbnail(registry models.Registry, dir string, maxWidth int) (string, error) {
	src := SelectThumbnail(registry, dir)
	if src == "" {
		return "", nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("reading thumbnail source: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding thumbnail source: %w", err)
	}

	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = downscale(img, maxWidth)
	}
	out, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ThumbnailName)
	if err := os.WriteFile(path, out, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
