package webimport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"deckgen/export"
	"deckgen/imaging"
)

const (
	defaultMaxSections = 8
	maxSectionsLimit   = 20

	maxBulletsPerSection = 10
	maxImagesPerSection  = 3
	maxBulletRunes       = 1000
	maxHeadingRunes      = 255
)

// Options configures an Importer.
type Options struct {
	Timeout           time.Duration // per-request timeout, default 20s
	MaxBytes          int64         // response body cap, default 20 MiB
	AllowPrivateHosts bool          // permit loopback/private/link-local targets
	Logger            func(string)  // optional log callback
}

// Importer fetches a web page and extracts a deck request from its
// structure: the page title becomes the deck title, h2/h3 headings become
// sections, and the paragraphs, list items and images under each heading
// become that section's content.
type Importer struct {
	client            *http.Client
	maxBytes          int64
	allowPrivateHosts bool
	logger            func(string)
}

// NewImporter creates an Importer with the given options.
func NewImporter(opts Options) *Importer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &Importer{
		client:            &http.Client{Timeout: timeout},
		maxBytes:          maxBytes,
		allowPrivateHosts: opts.AllowPrivateHosts,
		logger:            opts.Logger,
	}
}

// ImportPage fetches pageURL and assembles a DeckRequest from its content.
// maxSections caps the number of extracted sections; values outside
// [1, 20] fall back to the default of 8.
func (im *Importer) ImportPage(ctx context.Context, pageURL string, maxSections int) (*export.DeckRequest, error) {
	if maxSections <= 0 {
		maxSections = defaultMaxSections
	}
	if maxSections > maxSectionsLimit {
		maxSections = maxSectionsLimit
	}

	doc, base, err := im.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	request := &export.DeckRequest{}

	// Page title becomes the deck title, host as fallback
	request.Title = clipRunes(strings.TrimSpace(doc.Find("title").First().Text()), maxHeadingRunes)
	if request.Title == "" {
		request.Title = base.Hostname()
	}

	// Meta description becomes the subtitle
	doc.Find("meta[name='description']").Each(func(i int, s *goquery.Selection) {
		if desc, exists := s.Attr("content"); exists {
			request.Subtitle = strings.TrimSpace(desc)
		}
	})

	// One section per h2/h3 heading, content taken from the siblings
	// between this heading and the next
	doc.Find("h2, h3").Each(func(i int, heading *goquery.Selection) {
		if len(request.Slides) >= maxSections {
			return
		}
		title := strings.TrimSpace(heading.Text())
		if title == "" {
			return
		}

		section := export.SlideSection{Heading: clipRunes(title, maxHeadingRunes)}
		heading.NextUntil("h2, h3").Each(func(j int, sib *goquery.Selection) {
			im.collectContent(&section, sib, base)
		})
		request.Slides = append(request.Slides, section)
	})

	// A page without subheadings still yields a single-section deck
	if len(request.Slides) == 0 {
		section := export.SlideSection{Heading: "Overview"}
		doc.Find("p").Each(func(i int, p *goquery.Selection) {
			addBullet(&section, p.Text())
		})
		doc.Find("img[src]").Each(func(i int, img *goquery.Selection) {
			addImage(&section, img, base)
		})
		if len(section.Bullets) > 0 || len(section.Images) > 0 {
			request.Slides = append(request.Slides, section)
		}
	}

	im.log(fmt.Sprintf("[WEB-IMPORT] %s: extracted %d sections", pageURL, len(request.Slides)))

	if len(request.Slides) == 0 {
		return nil, fmt.Errorf("no usable content found at %s", pageURL)
	}

	return request, nil
}

// fetchPage retrieves the page and parses it. The returned base URL is the
// final request URL after redirects, used to resolve relative references.
func (im *Importer) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	if err := imaging.ValidateTarget(pageURL, im.allowPrivateHosts); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; DeckGen/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,zh-CN,zh;q=0.8")

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch page: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, im.maxBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %v", err)
	}
	if int64(len(body)) > im.maxBytes {
		return nil, nil, fmt.Errorf("response exceeds %d byte limit", im.maxBytes)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML: %v", err)
	}

	return doc, resp.Request.URL, nil
}

// collectContent pulls bullets and images out of one sibling element
// between two headings.
func (im *Importer) collectContent(section *export.SlideSection, sib *goquery.Selection, base *url.URL) {
	if sib.Is("p") {
		addBullet(section, sib.Text())
	}
	if sib.Is("li") {
		addBullet(section, sib.Text())
	}
	sib.Find("li").Each(func(i int, li *goquery.Selection) {
		addBullet(section, li.Text())
	})

	if sib.Is("img") {
		addImage(section, sib, base)
	}
	sib.Find("img[src]").Each(func(i int, img *goquery.Selection) {
		addImage(section, img, base)
	})
}

func addBullet(section *export.SlideSection, text string) {
	if len(section.Bullets) >= maxBulletsPerSection {
		return
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	section.Bullets = append(section.Bullets, clipRunes(trimmed, maxBulletRunes))
}

func addImage(section *export.SlideSection, img *goquery.Selection, base *url.URL) {
	if len(section.Images) >= maxImagesPerSection {
		return
	}
	src, _ := img.Attr("src")
	src = strings.TrimSpace(src)
	if src == "" {
		return
	}

	resolved := resolveRef(base, src)
	if resolved == "" {
		return
	}

	alt, _ := img.Attr("alt")
	section.Images = append(section.Images, imaging.ImageReference{
		URL:     resolved,
		Caption: strings.TrimSpace(alt),
	})
}

// resolveRef resolves src against the page URL and keeps only references
// the image pipeline can consume. Data URLs pass through unchanged.
func resolveRef(base *url.URL, src string) string {
	if imaging.IsDataURL(src) {
		return src
	}

	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

func clipRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func (im *Importer) log(message string) {
	if im.logger != nil {
		im.logger(message)
	}
}
