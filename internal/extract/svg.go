package extract

import (
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const (
	svgDefaultSize = 512
	svgMaxSize     = 4096
)

// rasterizeSVG converts inline SVG markup to PNG bytes. The primary path is
// a full vector render; when that fails (ar5iv occasionally emits SVG that
// trips strict parsers) a reduced-fidelity fallback renders only the basic
// geometry with solid fills, which is enough for a recognizable thumbnail.
func rasterizeSVG(markup string) ([]byte, error) {
	img, err := renderSVG(markup)
	if err != nil {
		img, err = renderSVGGeometry(markup)
		if err != nil {
			return nil, fmt.Errorf("rasterizing svg: %w", err)
		}
	}
	return encodePNG(img)
}

func renderSVG(markup string) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(markup), oksvg.WarnErrorMode)
	if err != nil {
		return nil, err
	}
	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		w, h = svgDefaultSize, svgDefaultSize
	}
	if w > svgMaxSize || h > svgMaxSize {
		return nil, fmt.Errorf("svg viewbox %dx%d too large", w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.SetTarget(0, 0, float64(w), float64(h))
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return img, nil
}

// svgShape is the subset of SVG geometry the fallback renderer understands.
type svgShape struct {
	XMLName xml.Name
	X       string `xml:"x,attr"`
	Y       string `xml:"y,attr"`
	Width   string `xml:"width,attr"`
	Height  string `xml:"height,attr"`
	CX      string `xml:"cx,attr"`
	CY      string `xml:"cy,attr"`
	R       string `xml:"r,attr"`
}

// renderSVGGeometry draws rect and circle elements as solid gray fills on a
// white canvas. Everything else (paths, text, gradients) is ignored.
func renderSVGGeometry(markup string) (image.Image, error) {
	decoder := xml.NewDecoder(strings.NewReader(markup))
	decoder.Strict = false

	canvas := image.NewRGBA(image.Rect(0, 0, svgDefaultSize, svgDefaultSize))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	fill := image.NewUniform(color.Gray{Y: 0x80})

	drawn := 0
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		var shape svgShape
		switch start.Name.Local {
		case "rect":
			shape = shapeFromAttrs(start)
			r := image.Rect(
				atoiF(shape.X), atoiF(shape.Y),
				atoiF(shape.X)+atoiF(shape.Width), atoiF(shape.Y)+atoiF(shape.Height),
			)
			if r.Dx() > 0 && r.Dy() > 0 {
				draw.Draw(canvas, r.Intersect(canvas.Bounds()), fill, image.Point{}, draw.Src)
				drawn++
			}
		case "circle":
			shape = shapeFromAttrs(start)
			r := atoiF(shape.R)
			cx, cy := atoiF(shape.CX), atoiF(shape.CY)
			box := image.Rect(cx-r, cy-r, cx+r, cy+r)
			if r > 0 {
				draw.Draw(canvas, box.Intersect(canvas.Bounds()), fill, image.Point{}, draw.Src)
				drawn++
			}
		}
	}

	if drawn == 0 {
		return nil, fmt.Errorf("no drawable geometry in svg")
	}
	return canvas, nil
}

func shapeFromAttrs(start xml.StartElement) svgShape {
	var s svgShape
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "x":
			s.X = attr.Value
		case "y":
			s.Y = attr.Value
		case "width":
			s.Width = attr.Value
		case "height":
			s.Height = attr.Value
		case "cx":
			s.CX = attr.Value
		case "cy":
			s.CY = attr.Value
		case "r":
			s.R = attr.Value
		}
	}
	return s
}

// atoiF parses an SVG length, tolerating decimals and unit suffixes.
func atoiF(s string) int {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "px")
	s = strings.TrimSuffix(s, "pt")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}
