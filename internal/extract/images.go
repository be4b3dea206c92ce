package extract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	// Image decoders for formats seen in ar5iv media and PDF streams.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// decodeDataURI decodes an inline data URI ("data:image/png;base64,...").
func decodeDataURI(uri string) ([]byte, error) {
	_, rest, found := strings.Cut(uri, ",")
	if !found {
		return nil, fmt.Errorf("malformed data URI")
	}
	meta := uri[:len(uri)-len(rest)-1]
	if strings.Contains(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 payload: %w", err)
		}
		return data, nil
	}
	decoded, err := url.PathUnescape(rest)
	if err != nil {
		return nil, fmt.Errorf("decoding data URI payload: %w", err)
	}
	return []byte(decoded), nil
}

// toPNG normalizes raw image bytes to PNG. All persisted images use one
// format so ids map 1:1 to <id>.png files.
func toPNG(data []byte) ([]byte, error) {
	if len(data) > 8 && bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// writeImage persists PNG bytes as <id>.png under dir and returns the path.
func writeImage(dir, id string, data []byte) (string, error) {
	path := filepath.Join(dir, id+".png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// imageDims reports pixel dimensions without a full decode.
func imageDims(data []byte) (w, h int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// resolveRef resolves an image reference against the paper's base location.
// Absolute references pass through untouched.
func resolveRef(baseURL, ref string) (string, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing image reference %q: %w", ref, err)
	}
	if refURL.IsAbs() {
		return ref, nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL %q: %w", baseURL, err)
	}
	return base.ResolveReference(refURL).String(), nil
}
