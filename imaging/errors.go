package imaging

import (
	"errors"
	"fmt"
)

// ErrRasterizerUnavailable marks the capability failure reported when an SVG
// payload is encountered and no rasterizer was configured.
var ErrRasterizerUnavailable = errors.New("SVG image found but no rasterizer is configured on this server")

// FetchError reports a failure to retrieve a remote resource. It is always
// attributed to a single URL and never aborts the surrounding deck build.
type FetchError struct {
	URL string
	Err error
}

// Error returns the formatted error message including the source URL.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error, supporting errors.Is/errors.As chains.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a FetchError. If err is nil, returns nil.
func NewFetchError(url string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{URL: url, Err: err}
}

// FormatError reports an image payload that cannot be made embeddable:
// an unrecognized encoding, a recognized one that failed to convert, or a
// missing conversion capability.
type FormatError struct {
	ContentType string // declared content type, may be empty
	URL         string
	Err         error // underlying cause, may be nil for unrecognized types
}

// Error returns the formatted error message.
func (e *FormatError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	ct := e.ContentType
	if ct == "" {
		ct = "unknown"
	}
	return fmt.Sprintf("unsupported image type: %s", ct)
}

// Unwrap returns the underlying error, supporting errors.Is/errors.As chains.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is or wraps a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsFormatError reports whether err is or wraps a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
