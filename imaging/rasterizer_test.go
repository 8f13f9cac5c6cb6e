package imaging

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSVGRasterizerProducesPNGAtIntrinsicSize(t *testing.T) {
	rasterizer := NewSVGRasterizer()
	out, err := rasterizer.Rasterize([]byte(svgFixture))
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err, "rasterizer output must be valid PNG")
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}

func TestSVGRasterizerDegenerateViewBox(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg"><circle cx="5" cy="5" r="4" fill="red"/></svg>`
	rasterizer := NewSVGRasterizer()
	out, err := rasterizer.Rasterize([]byte(svg))
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, defaultRasterSide, cfg.Width)
	assert.Equal(t, defaultRasterSide, cfg.Height)
}

func TestSVGRasterizerClampsOversizedCanvas(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100000 5"><rect width="100000" height="5"/></svg>`
	rasterizer := NewSVGRasterizer()
	out, err := rasterizer.Rasterize([]byte(svg))
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, maxRasterSide, cfg.Width)
	assert.Equal(t, minRasterSide, cfg.Height, "tiny sides are raised to the minimum")
}

func TestSVGRasterizerRejectsBrokenXML(t *testing.T) {
	rasterizer := NewSVGRasterizer()
	_, err := rasterizer.Rasterize([]byte(`<svg viewBox="0 0 10 10"><rect`))
	assert.Error(t, err)
}
