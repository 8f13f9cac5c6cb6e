package export

import (
	"bytes"
	"fmt"
	"image/gif"
	"image/png"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"deckgen/imaging"
)

// PDFExportService renders a resolved deck as an A4 handout using maroto
type PDFExportService struct{}

// NewPDFExportService creates a new PDF export service
func NewPDFExportService() *PDFExportService {
	return &PDFExportService{}
}

// ExportDeckToPDF renders the deck into a PDF handout.
func (s *PDFExportService) ExportDeckToPDF(deck *Deck) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		WithDefaultFont(&props.Font{
			Family: fontfamily.Arial,
			Size:   10,
		}).
		Build()

	m := maroto.New(cfg)

	s.addHeader(m, deck)

	for i := range deck.Sections {
		s.addSection(m, deck, &deck.Sections[i])
	}

	s.addFooter(m, deck)

	document, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return document.GetBytes(), nil
}

// addHeader adds the deck title block
func (s *PDFExportService) addHeader(m core.Maroto, deck *Deck) {
	m.AddRow(20,
		col.New(12).Add(
			text.New(truncateRunes(deck.Request.Title, maxTitleRunes), props.Text{
				Family: fontfamily.Arial,
				Size:   18,
				Style:  fontstyle.Bold,
				Align:  align.Center,
				Color:  argbToColor(deck.Theme.TitleText),
			}),
		),
	)

	if deck.Request.Subtitle != "" {
		m.AddRow(8,
			col.New(12).Add(
				text.New(deck.Request.Subtitle, props.Text{
					Family: fontfamily.Arial,
					Size:   11,
					Align:  align.Center,
					Color:  argbToColor(deck.Theme.BodyText),
				}),
			),
		)
	}

	m.AddRow(8,
		col.New(12).Add(
			text.New(fmt.Sprintf("Generated %s", deck.GeneratedAt.Format("2006-01-02 15:04")), props.Text{
				Family: fontfamily.Arial,
				Size:   9,
				Align:  align.Center,
				Color:  argbToColor(deck.Theme.MutedText),
			}),
		),
	)

	m.AddRow(5)
}

// addSection adds one deck section: heading, bullets, images and table
func (s *PDFExportService) addSection(m core.Maroto, deck *Deck, rs *ResolvedSection) {
	m.AddRow(8,
		col.New(12).Add(
			text.New(truncateRunes(rs.Section.Heading, maxHeadingRunes), props.Text{
				Family: fontfamily.Arial,
				Size:   12,
				Style:  fontstyle.Bold,
				Color:  argbToColor(deck.Theme.TitleText),
			}),
		),
	)

	for _, bullet := range rs.Section.Bullets {
		m.AddRow(6,
			col.New(12).Add(
				text.New("• "+truncateRunes(bullet, maxBulletRunes), props.Text{
					Family: fontfamily.Arial,
					Size:   10,
				}),
			),
		)
	}

	for _, note := range rs.PlaceholderLines() {
		m.AddRow(6,
			col.New(12).Add(
				text.New(note, props.Text{
					Family: fontfamily.Arial,
					Size:   9,
					Style:  fontstyle.Italic,
					Color:  argbToColor(deck.Theme.MutedText),
				}),
			),
		)
	}

	for i := range rs.Images {
		res := &rs.Images[i]
		if res.Failed() {
			continue
		}

		imgBytes, ext := handoutImageBytes(res.Image)
		if imgBytes == nil {
			continue
		}

		m.AddRow(80,
			col.New(12).Add(
				image.NewFromBytes(imgBytes, ext),
			),
		)

		if res.Ref.Caption != "" {
			m.AddRow(6,
				col.New(12).Add(
					text.New(truncateRunes(res.Ref.Caption, maxCaptionRunes), props.Text{
						Family: fontfamily.Arial,
						Size:   9,
						Align:  align.Center,
						Color:  argbToColor(deck.Theme.MutedText),
					}),
				),
			)
		}
	}

	if rs.Section.Table != nil && len(rs.Section.Table.Columns) > 0 {
		s.addTable(m, deck, rs.Section.Table)
	}

	m.AddRow(5)
}

// addTable adds a section table
func (s *PDFExportService) addTable(m core.Maroto, deck *Deck, table *TableBlock) {
	// Limit columns to fit page width (max 6 columns)
	maxCols := 6
	cols := table.Columns
	if len(cols) > maxCols {
		cols = cols[:maxCols]
	}

	colWidth := 12 / len(cols)

	headerCols := []core.Col{}
	for _, column := range cols {
		headerCols = append(headerCols, col.New(colWidth).Add(
			text.New(column, props.Text{
				Family: fontfamily.Arial,
				Size:   8,
				Style:  fontstyle.Bold,
				Align:  align.Center,
			}),
		))
	}
	m.AddRow(7, headerCols...)

	// Limit rows for the handout
	maxRows := 50
	rows := table.Rows
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	for _, rowData := range rows {
		dataCols := []core.Col{}
		for i := 0; i < len(cols) && i < len(rowData); i++ {
			cellValue := rowData[i]
			if len([]rune(cellValue)) > 30 {
				cellValue = string([]rune(cellValue)[:27]) + "..."
			}
			dataCols = append(dataCols, col.New(colWidth).Add(
				text.New(cellValue, props.Text{
					Family: fontfamily.Arial,
					Size:   7,
					Align:  align.Left,
				}),
			))
		}
		m.AddRow(6, dataCols...)
	}

	if len(table.Rows) > maxRows {
		m.AddRow(6,
			col.New(12).Add(
				text.New(fmt.Sprintf("Showing first %d of %d rows", maxRows, len(table.Rows)), props.Text{
					Family: fontfamily.Arial,
					Size:   7,
					Style:  fontstyle.Italic,
					Align:  align.Center,
					Color:  argbToColor(deck.Theme.MutedText),
				}),
			),
		)
	}
}

// addFooter adds the deck footer
func (s *PDFExportService) addFooter(m core.Maroto, deck *Deck) {
	if deck.Request.Footer == "" {
		return
	}
	m.AddRow(10,
		col.New(12).Add(
			text.New(truncateRunes(deck.Request.Footer, maxFooterRunes), props.Text{
				Family: fontfamily.Arial,
				Size:   8,
				Align:  align.Center,
				Color:  argbToColor(deck.Theme.MutedText),
			}),
		),
	)
}

// handoutImageBytes prepares embeddable bytes for the PDF engine. GIF frames
// are re-encoded to PNG first; anything that cannot be prepared is skipped.
func handoutImageBytes(img *imaging.EmbeddableImage) ([]byte, extension.Type) {
	switch img.MIMEType {
	case "image/jpeg":
		return img.Data, extension.Jpg
	case "image/gif":
		decoded, err := gif.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return nil, extension.Png
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, decoded); err != nil {
			return nil, extension.Png
		}
		return buf.Bytes(), extension.Png
	default:
		return img.Data, extension.Png
	}
}

// argbToColor converts an ARGB hex string to a maroto color.
func argbToColor(argb string) *props.Color {
	rgb := rgbHex(argb)
	if len(rgb) != 6 {
		return &props.Color{}
	}
	v, err := strconv.ParseUint(rgb, 16, 32)
	if err != nil {
		return &props.Color{}
	}
	return &props.Color{
		Red:   int(v >> 16 & 0xFF),
		Green: int(v >> 8 & 0xFF),
		Blue:  int(v & 0xFF),
	}
}
