package imaging

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// dataURLPattern matches base64 image data URLs.
// Matches: data:image/png;base64,iVBORw0KGgo...
// Matches: data:image/jpeg;base64,/9j/4AAQSkZJRg...
// Matches: data:image/svg+xml;base64,PHN2Zy...
var dataURLPattern = regexp.MustCompile(`^data:image/([a-zA-Z0-9+\-\.]+);base64,([A-Za-z0-9+/=]+)$`)

// IsDataURL reports whether raw is a base64-encoded image data URL.
func IsDataURL(raw string) bool {
	return strings.HasPrefix(raw, "data:image/")
}

// DecodeDataURL turns a base64 image data URL into a FetchedResource without
// any network I/O. The declared media type of the URL becomes the resource
// content type, so the normalizer treats inline and remote images uniformly.
func DecodeDataURL(raw string) (*FetchedResource, error) {
	match := dataURLPattern.FindStringSubmatch(raw)
	if match == nil {
		return nil, &FormatError{URL: ShortenURL(raw), Err: fmt.Errorf("malformed image data URL")}
	}

	payload, err := base64.StdEncoding.DecodeString(match[2])
	if err != nil {
		return nil, &FormatError{URL: ShortenURL(raw), Err: fmt.Errorf("invalid base64 image data: %v", err)}
	}
	if len(payload) == 0 {
		return nil, &FormatError{URL: ShortenURL(raw), Err: fmt.Errorf("empty image data URL")}
	}

	return &FetchedResource{
		Body:        payload,
		ContentType: "image/" + match[1],
		URL:         ShortenURL(raw),
	}, nil
}

// ShortenURL caps a URL for display in placeholders and logs. Data URLs
// carry whole payloads, so anything longer than 64 runes is cut with an
// ellipsis marker.
func ShortenURL(raw string) string {
	runes := []rune(raw)
	if len(runes) <= 64 {
		return raw
	}
	return string(runes[:61]) + "..."
}
