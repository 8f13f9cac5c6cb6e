package export

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"deckgen/imaging"
)

// Output formats accepted in DeckRequest.Formats.
const (
	FormatPPTX = "pptx"
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatXLSX = "xlsx"
)

// Rune caps applied when rendering text into the output documents.
const (
	maxTitleRunes   = 255
	maxHeadingRunes = 255
	maxBulletRunes  = 1000
	maxCaptionRunes = 200
	maxFooterRunes  = 120
)

// defaultAuthor is used for the document Creator property when the request
// names no author.
const defaultAuthor = "DeckGen"

var allFormats = []string{FormatPPTX, FormatPDF, FormatDOCX, FormatXLSX}

// DeckRequest is the JSON body accepted by the deck creation endpoints.
type DeckRequest struct {
	Title    string         `json:"title"`
	Subtitle string         `json:"subtitle,omitempty"`
	Author   string         `json:"author,omitempty"`
	Theme    string         `json:"theme,omitempty"`
	Footer   string         `json:"footer,omitempty"`
	LogoURL  string         `json:"logo_url,omitempty"`
	Formats  []string       `json:"formats,omitempty"`
	Slides   []SlideSection `json:"slides"`
}

// SlideSection describes one content slide of the deck.
type SlideSection struct {
	Heading string                   `json:"heading"`
	Bullets []string                 `json:"bullets,omitempty"`
	Images  []imaging.ImageReference `json:"images,omitempty"`
	Table   *TableBlock              `json:"table,omitempty"`
}

// TableBlock is a simple column/row table attached to a section.
type TableBlock struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ValidationError represents a validation error with field and message
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// validateRequired validates that a field is not empty
func validateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// Validate checks the request against the API contract. It returns a
// *ValidationError describing the first problem found, or nil.
func (r *DeckRequest) Validate() error {
	if err := validateRequired("title", r.Title); err != nil {
		return err
	}
	if len(r.Slides) == 0 {
		return &ValidationError{Field: "slides", Message: "at least one slide is required"}
	}
	for i := range r.Slides {
		if err := r.Slides[i].validate(fmt.Sprintf("slides[%d]", i)); err != nil {
			return err
		}
	}
	for _, f := range r.Formats {
		if !isKnownFormat(f) {
			return &ValidationError{
				Field:   "formats",
				Message: fmt.Sprintf("must be one of: %s", strings.Join(allFormats, ", ")),
			}
		}
	}
	if r.wantsFormat(FormatXLSX) && !r.HasTables() {
		return &ValidationError{
			Field:   "formats",
			Message: "xlsx output requires at least one slide with a table",
		}
	}
	return nil
}

func (s *SlideSection) validate(field string) error {
	if err := validateRequired(field+".heading", s.Heading); err != nil {
		return err
	}
	for j, img := range s.Images {
		imgField := fmt.Sprintf("%s.images[%d]", field, j)
		if !imaging.IsValidHTTPURL(img.URL) && !imaging.IsDataURL(img.URL) {
			return &ValidationError{Field: imgField + ".url", Message: "must be a valid http(s) or data URL"}
		}
		if img.WidthInch < 0 {
			return &ValidationError{Field: imgField + ".width_inch", Message: "must be a positive number"}
		}
		if img.HeightInch < 0 {
			return &ValidationError{Field: imgField + ".height_inch", Message: "must be a positive number"}
		}
	}
	if s.Table != nil && len(s.Table.Columns) == 0 {
		return &ValidationError{Field: field + ".table.columns", Message: "is required"}
	}
	return nil
}

func isKnownFormat(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, f := range allFormats {
		if name == f {
			return true
		}
	}
	return false
}

func (r *DeckRequest) wantsFormat(format string) bool {
	for _, f := range r.Formats {
		if strings.ToLower(strings.TrimSpace(f)) == format {
			return true
		}
	}
	return false
}

// OutputFormats returns the normalized list of formats to produce. The
// presentation itself is always first; requested extras follow in request
// order without duplicates.
func (r *DeckRequest) OutputFormats() []string {
	formats := []string{FormatPPTX}
	seen := map[string]bool{FormatPPTX: true}
	for _, f := range r.Formats {
		name := strings.ToLower(strings.TrimSpace(f))
		if !seen[name] {
			seen[name] = true
			formats = append(formats, name)
		}
	}
	return formats
}

// HasTables reports whether any section carries a table block.
func (r *DeckRequest) HasTables() bool {
	for i := range r.Slides {
		t := r.Slides[i].Table
		if t != nil && len(t.Columns) > 0 {
			return true
		}
	}
	return false
}

// CreatorName returns the document Creator property value.
func (r *DeckRequest) CreatorName() string {
	if strings.TrimSpace(r.Author) != "" {
		return strings.TrimSpace(r.Author)
	}
	return defaultAuthor
}

// ThemeName returns the normalized requested theme name.
func (r *DeckRequest) ThemeName() string {
	name := strings.ToLower(strings.TrimSpace(r.Theme))
	if name == "" {
		return DefaultThemeName
	}
	return name
}

// Deck bundles a validated request with its resolved image assets. The
// renderers consume a Deck and never touch the network themselves.
type Deck struct {
	Request     *DeckRequest
	Theme       Theme
	Logo        *imaging.EmbeddableImage
	Sections    []ResolvedSection
	GeneratedAt time.Time
}

// ResolvedSection pairs a section with the resolution outcome of its images.
// Images holds one entry per reference, in request order.
type ResolvedSection struct {
	Section SlideSection
	Images  []imaging.ResolvedImage
}

// PlaceholderLines returns the placeholder note for every failed image of the
// section, in request order.
func (rs *ResolvedSection) PlaceholderLines() []string {
	var lines []string
	for i := range rs.Images {
		if rs.Images[i].Failed() {
			lines = append(lines, rs.Images[i].PlaceholderText())
		}
	}
	return lines
}

// truncateRunes caps a string at limit runes without an ellipsis marker.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
