package imaging

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FetchedResource is the raw result of retrieving a remote image: the full
// response body, the declared content type (possibly empty), and the origin
// URL. It is owned by the caller and consumed once by the normalizer.
type FetchedResource struct {
	Body        []byte
	ContentType string
	URL         string
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	Timeout           time.Duration // per-request timeout, default 20s
	MaxBytes          int64         // response body cap, default 20 MiB
	AllowPrivateHosts bool          // permit loopback/private/link-local targets
	Logger            func(string)  // optional log callback
}

// Fetcher retrieves remote resources with browser-like headers. One attempt
// per call, redirects followed transparently (the default client stops after
// 10 hops), no caching and no retries.
type Fetcher struct {
	client            *http.Client
	maxBytes          int64
	allowPrivateHosts bool
	logger            func(string)
}

// NewFetcher creates a Fetcher with the given options.
func NewFetcher(opts FetcherOptions) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &Fetcher{
		client:            &http.Client{Timeout: timeout},
		maxBytes:          maxBytes,
		allowPrivateHosts: opts.AllowPrivateHosts,
		logger:            opts.Logger,
	}
}

// Fetch performs a single HTTP GET against rawURL and returns the response
// body with its declared content type. Any validation failure, network
// error, non-2xx status or oversized body surfaces as a FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchedResource, error) {
	if err := ValidateTarget(rawURL, f.allowPrivateHosts); err != nil {
		return nil, NewFetchError(rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, NewFetchError(rawURL, fmt.Errorf("failed to create request: %v", err))
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; DeckGen/1.0)")
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,zh-CN,zh;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewFetchError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewFetchError(rawURL, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, NewFetchError(rawURL, fmt.Errorf("failed to read response: %v", err))
	}
	if int64(len(body)) > f.maxBytes {
		return nil, NewFetchError(rawURL, fmt.Errorf("response exceeds %d byte limit", f.maxBytes))
	}

	f.log(fmt.Sprintf("[FETCH] %s (%d bytes, %q)", rawURL, len(body), resp.Header.Get("Content-Type")))

	return &FetchedResource{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         rawURL,
	}, nil
}

// ValidateTarget validates the URL scheme and, unless private hosts are
// explicitly allowed, rejects targets that resolve to loopback, private or
// link-local addresses. The service fetches caller-supplied URLs, so this
// is the default stance at that trust boundary. It is shared by every
// outbound fetch path, not just image retrieval.
func ValidateTarget(rawURL string, allowPrivateHosts bool) error {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
	}
	if allowPrivateHosts {
		return nil
	}

	host := parsed.Hostname()
	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("failed to resolve host %s: %v", host, err)
	}
	for _, ip := range ips {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("access to restricted network address %s is blocked", ip.String())
		}
	}
	return nil
}

func (f *Fetcher) log(message string) {
	if f.logger != nil {
		f.logger(message)
	}
}

// IsValidHTTPURL reports whether raw parses as an absolute http or https URL
// with a host. Used by request validation before any fetching begins.
func IsValidHTTPURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
