package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// webpFixture is a minimal 1x1 lossless WebP (RIFF container, VP8L chunk).
const webpFixtureBase64 = "UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA=="

const svgFixture = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 40 30"><rect x="2" y="2" width="36" height="26" fill="#3b82f6"/></svg>`

func webpFixture(t *testing.T) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(webpFixtureBase64)
	require.NoError(t, err)
	return data
}

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func makeGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// stubRasterizer lets tests drive the SVG branch deterministically.
type stubRasterizer struct {
	data []byte
	err  error
}

func (s *stubRasterizer) Rasterize([]byte) ([]byte, error) {
	return s.data, s.err
}

func TestNormalizePassthroughByContentType(t *testing.T) {
	payload := makePNG(t, 3, 3)

	tests := []struct {
		name        string
		contentType string
		wantMIME    string
	}{
		{"png", "image/png", "image/png"},
		{"jpeg", "image/jpeg", "image/jpeg"},
		{"legacy jpg", "image/jpg", "image/jpeg"},
		{"gif", "image/gif", "image/gif"},
		{"uppercase header", "IMAGE/PNG", "image/png"},
		{"header with charset", "image/png; charset=binary", "image/png"},
	}

	normalizer := NewNormalizer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := normalizer.Normalize(&FetchedResource{
				Body:        payload,
				ContentType: tt.contentType,
				URL:         "https://example.com/asset",
			})
			require.NoError(t, err)
			assert.True(t, bytes.Equal(payload, out.Data), "passthrough must be byte-identical")
			assert.Equal(t, tt.wantMIME, out.MIMEType)
		})
	}
}

// For any payload with a recognized raster content type the normalizer
// returns the bytes unmodified.
func TestNormalize_Property_PassthroughIsByteIdentical(t *testing.T) {
	normalizer := NewNormalizer(nil)
	recognized := []string{"image/png", "image/jpeg", "image/jpg", "image/gif"}

	property := func(payload []byte, pick uint8) bool {
		ct := recognized[int(pick)%len(recognized)]
		out, err := normalizer.Normalize(&FetchedResource{
			Body:        payload,
			ContentType: ct,
			URL:         "https://example.com/anything.bin",
		})
		if err != nil {
			t.Logf("unexpected error for content type %s: %v", ct, err)
			return false
		}
		return bytes.Equal(payload, out.Data)
	}

	config := &quick.Config{MaxCount: 100}
	if err := quick.Check(property, config); err != nil {
		t.Errorf("Property test failed: %v", err)
	}
}

func TestNormalizeWebPReencodesToPNG(t *testing.T) {
	normalizer := NewNormalizer(nil)

	tests := []struct {
		name        string
		contentType string
		url         string
	}{
		{"by content type", "image/webp", "https://example.com/picture"},
		{"by extension", "", "https://example.com/picture.webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := normalizer.Normalize(&FetchedResource{
				Body:        webpFixture(t),
				ContentType: tt.contentType,
				URL:         tt.url,
			})
			require.NoError(t, err)
			assert.Equal(t, "image/png", out.MIMEType)

			decoded, err := png.Decode(bytes.NewReader(out.Data))
			require.NoError(t, err, "output must be valid PNG")
			assert.Equal(t, 1, decoded.Bounds().Dx())
			assert.Equal(t, 1, decoded.Bounds().Dy())
		})
	}
}

func TestNormalizeWebPRejectsCorruptPayload(t *testing.T) {
	normalizer := NewNormalizer(nil)
	_, err := normalizer.Normalize(&FetchedResource{
		Body:        []byte("definitely not a webp"),
		ContentType: "image/webp",
		URL:         "https://example.com/broken.webp",
	})
	require.Error(t, err)
	assert.True(t, IsFormatError(err))
	assert.Contains(t, err.Error(), "decode WebP")
}

func TestNormalizeSVGWithRasterizer(t *testing.T) {
	normalizer := NewNormalizer(NewSVGRasterizer())
	out, err := normalizer.Normalize(&FetchedResource{
		Body:        []byte(svgFixture),
		ContentType: "image/svg+xml",
		URL:         "https://example.com/logo.svg",
	})
	require.NoError(t, err)
	assert.Equal(t, "image/png", out.MIMEType)

	cfg, err := png.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}

func TestNormalizeSVGWithoutRasterizer(t *testing.T) {
	normalizer := NewNormalizer(nil)
	_, err := normalizer.Normalize(&FetchedResource{
		Body:        []byte(svgFixture),
		ContentType: "image/svg+xml",
		URL:         "https://example.com/logo.svg",
	})
	require.Error(t, err)
	assert.True(t, IsFormatError(err))
	assert.True(t, errors.Is(err, ErrRasterizerUnavailable), "missing rasterizer must surface as the capability error")
}

func TestNormalizeSVGRasterizeFailure(t *testing.T) {
	normalizer := NewNormalizer(&stubRasterizer{err: fmt.Errorf("boom")})
	_, err := normalizer.Normalize(&FetchedResource{
		Body:        []byte(svgFixture),
		ContentType: "image/svg+xml",
		URL:         "https://example.com/logo.svg",
	})
	require.Error(t, err)
	assert.True(t, IsFormatError(err))
	assert.Contains(t, err.Error(), "rasterize")
}

func TestNormalizeExtensionFallback(t *testing.T) {
	payload := makeGIF(t, 2, 2)
	normalizer := NewNormalizer(&stubRasterizer{data: makePNG(t, 2, 2)})

	tests := []struct {
		name        string
		contentType string
		url         string
		wantMIME    string
	}{
		{"empty header png", "", "https://example.com/shot.png", "image/png"},
		{"empty header jpeg", "", "https://example.com/shot.jpeg?size=large", "image/jpeg"},
		{"octet-stream gif", "application/octet-stream", "https://example.com/anim.gif", "image/gif"},
		{"text-plain svg", "text/plain", "https://example.com/icon.svg", "image/png"},
		{"binary octet-stream jpg", "binary/octet-stream", "https://example.com/photo.JPG", "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := normalizer.Normalize(&FetchedResource{
				Body:        payload,
				ContentType: tt.contentType,
				URL:         tt.url,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, out.MIMEType)
		})
	}
}

func TestNormalizeRecognizedHeaderWinsOverExtension(t *testing.T) {
	payload := makePNG(t, 2, 2)
	normalizer := NewNormalizer(nil)

	// The URL claims WebP but the server declares PNG; the declared header
	// must win, so the bytes pass through without a WebP decode attempt.
	out, err := normalizer.Normalize(&FetchedResource{
		Body:        payload,
		ContentType: "image/png",
		URL:         "https://example.com/image.webp",
	})
	require.NoError(t, err)
	assert.Equal(t, "image/png", out.MIMEType)
	assert.True(t, bytes.Equal(payload, out.Data))
}

func TestNormalizeUnrecognizedFails(t *testing.T) {
	normalizer := NewNormalizer(nil)

	tests := []struct {
		name        string
		contentType string
		url         string
		wantInError string
	}{
		{"html page", "text/html", "https://example.com/page.html", "text/html"},
		{"no header no extension", "", "https://example.com/resource", "unknown"},
		{"pdf", "application/pdf", "https://example.com/doc.pdf", "application/pdf"},
		{"svg extension with html header", "text/html", "https://example.com/icon.svg", "text/html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizer.Normalize(&FetchedResource{
				Body:        []byte("irrelevant"),
				ContentType: tt.contentType,
				URL:         tt.url,
			})
			require.Error(t, err)
			assert.True(t, IsFormatError(err))
			assert.Contains(t, err.Error(), tt.wantInError)
		})
	}
}

// An unrecognized content type combined with a non-matching extension always
// yields a FormatError, regardless of payload contents.
func TestNormalize_Property_UnrecognizedAlwaysFails(t *testing.T) {
	normalizer := NewNormalizer(NewSVGRasterizer())
	badTypes := []string{"text/html", "application/pdf", "audio/mpeg", "video/mp4", "application/json"}
	badExts := []string{"", ".html", ".bin", ".mp3", ".json"}

	property := func(payload []byte, typePick, extPick uint8) bool {
		ct := badTypes[int(typePick)%len(badTypes)]
		ext := badExts[int(extPick)%len(badExts)]
		_, err := normalizer.Normalize(&FetchedResource{
			Body:        payload,
			ContentType: ct,
			URL:         "https://example.com/resource" + ext,
		})
		return IsFormatError(err)
	}

	config := &quick.Config{MaxCount: 100}
	if err := quick.Check(property, config); err != nil {
		t.Errorf("Property test failed: %v", err)
	}
}
