package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Rasterizer converts a vector image description (SVG) into a PNG raster.
// The normalizer treats a nil Rasterizer as a missing deployment capability,
// not a data error.
type Rasterizer interface {
	Rasterize(svg []byte) ([]byte, error)
}

// Raster size bounds. A degenerate viewBox falls back to a square canvas.
const (
	minRasterSide     = 16
	maxRasterSide     = 4096
	defaultRasterSide = 512
)

// SVGRasterizer renders SVG documents to PNG using the oksvg parser and the
// rasterx scan converter. Unsupported SVG features are skipped rather than
// failing the whole document.
type SVGRasterizer struct{}

// NewSVGRasterizer creates a new SVGRasterizer.
func NewSVGRasterizer() *SVGRasterizer {
	return &SVGRasterizer{}
}

// Rasterize parses the SVG bytes and draws them onto a canvas sized by the
// document's intrinsic viewBox, returning the encoded PNG.
func (r *SVGRasterizer) Rasterize(svg []byte) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %v", err)
	}

	w := int(math.Ceil(icon.ViewBox.W))
	h := int(math.Ceil(icon.ViewBox.H))
	if w <= 0 || h <= 0 {
		w, h = defaultRasterSide, defaultRasterSide
	}
	w = clampSide(w)
	h = clampSide(h)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.SetTarget(0, 0, float64(w), float64(h))
	icon.Draw(dasher, 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %v", err)
	}
	return buf.Bytes(), nil
}

func clampSide(n int) int {
	if n < minRasterSide {
		return minRasterSide
	}
	if n > maxRasterSide {
		return maxRasterSide
	}
	return n
}
