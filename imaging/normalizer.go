package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"net/url"
	"path"
	"strings"

	"golang.org/x/image/webp"
)

// EmbeddableImage is an image buffer guaranteed to be in a format the output
// document can store directly. Its Data always decodes as PNG, JPEG or GIF;
// no other format is ever handed downstream.
type EmbeddableImage struct {
	Data     []byte
	MIMEType string
}

// Normalizer turns fetched image bytes into an embeddable raster. It is a
// pure function of its input; the only configuration is the optional SVG
// rasterizer capability.
type Normalizer struct {
	rasterizer Rasterizer
}

// NewNormalizer creates a Normalizer. A nil rasterizer disables SVG support:
// SVG inputs then fail with a capability FormatError instead of crashing.
func NewNormalizer(rasterizer Rasterizer) *Normalizer {
	return &Normalizer{rasterizer: rasterizer}
}

// unreliableContentTypes are header values some origin servers send for
// anything binary. They carry no format information, so the URL suffix is
// consulted instead.
var unreliableContentTypes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
	"application/binary":       true,
	"text/plain":               true,
}

// Normalize decides whether the payload is natively embeddable (PNG/JPEG/GIF
// pass through unchanged) or must be converted (SVG rasterized, WebP
// re-encoded as PNG). A recognized Content-Type always wins; the URL suffix
// is a secondary signal for servers that omit or mis-set the header, and it
// never overrides a recognized one.
func (n *Normalizer) Normalize(res *FetchedResource) (*EmbeddableImage, error) {
	ct := strings.ToLower(strings.TrimSpace(res.ContentType))
	ext := urlExtension(res.URL)

	switch {
	case strings.Contains(ct, "image/svg"):
		return n.rasterize(res)
	case strings.Contains(ct, "image/webp"):
		return reencodeWebP(res)
	case strings.Contains(ct, "image/png"):
		return &EmbeddableImage{Data: res.Body, MIMEType: "image/png"}, nil
	case strings.Contains(ct, "image/jpeg"), strings.Contains(ct, "image/jpg"):
		return &EmbeddableImage{Data: res.Body, MIMEType: "image/jpeg"}, nil
	case strings.Contains(ct, "image/gif"):
		return &EmbeddableImage{Data: res.Body, MIMEType: "image/gif"}, nil
	}

	unreliableHeader := unreliableContentTypes[baseContentType(ct)]

	switch {
	case ext == ".svg" && unreliableHeader:
		return n.rasterize(res)
	case ext == ".webp":
		return reencodeWebP(res)
	case ext == ".png":
		return &EmbeddableImage{Data: res.Body, MIMEType: "image/png"}, nil
	case ext == ".jpg", ext == ".jpeg":
		return &EmbeddableImage{Data: res.Body, MIMEType: "image/jpeg"}, nil
	case ext == ".gif":
		return &EmbeddableImage{Data: res.Body, MIMEType: "image/gif"}, nil
	}

	return nil, &FormatError{ContentType: res.ContentType, URL: res.URL}
}

// rasterize converts an SVG payload to PNG, or reports the missing
// capability when no rasterizer was configured at deployment time.
func (n *Normalizer) rasterize(res *FetchedResource) (*EmbeddableImage, error) {
	if n.rasterizer == nil {
		return nil, &FormatError{ContentType: res.ContentType, URL: res.URL, Err: ErrRasterizerUnavailable}
	}
	data, err := n.rasterizer.Rasterize(res.Body)
	if err != nil {
		return nil, &FormatError{ContentType: res.ContentType, URL: res.URL, Err: fmt.Errorf("failed to rasterize SVG: %v", err)}
	}
	return &EmbeddableImage{Data: data, MIMEType: "image/png"}, nil
}

// reencodeWebP decodes a WebP payload, converts the color model to include
// an alpha channel and re-encodes it as PNG with identical dimensions.
func reencodeWebP(res *FetchedResource) (*EmbeddableImage, error) {
	src, err := webp.Decode(bytes.NewReader(res.Body))
	if err != nil {
		return nil, &FormatError{ContentType: res.ContentType, URL: res.URL, Err: fmt.Errorf("failed to decode WebP image: %v", err)}
	}

	bounds := src.Bounds()
	rgba := image.NewNRGBA(bounds)
	draw.Draw(rgba, bounds, src, bounds.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, &FormatError{ContentType: res.ContentType, URL: res.URL, Err: fmt.Errorf("failed to encode PNG: %v", err)}
	}
	return &EmbeddableImage{Data: buf.Bytes(), MIMEType: "image/png"}, nil
}

// urlExtension returns the lowercased extension of the URL path, or "" when
// the URL does not parse.
func urlExtension(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(parsed.Path))
}

// baseContentType strips any parameters ("; charset=...") from a MIME value.
func baseContentType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
