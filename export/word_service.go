package export

import (
	"fmt"

	goword "github.com/VantageDataChat/GoWord"
	"github.com/VantageDataChat/GoWord/style"
)

// WordExportService renders a resolved deck as an outline document using GoWord (pure Go)
type WordExportService struct{}

// NewWordExportService creates a new Word export service
func NewWordExportService() *WordExportService {
	return &WordExportService{}
}

// ExportDeckToWord renders the deck into a Word outline document.
func (s *WordExportService) ExportDeckToWord(deck *Deck) ([]byte, error) {
	doc := goword.New()
	doc.Properties.Title = truncateRunes(deck.Request.Title, maxTitleRunes)
	doc.Properties.Creator = deck.Request.CreatorName()
	doc.Properties.Description = "Generated by DeckGen"

	sec := doc.AddSection()

	sec.AddTitle(truncateRunes(deck.Request.Title, maxTitleRunes), 1)

	if deck.Request.Subtitle != "" {
		sec.AddText(deck.Request.Subtitle,
			&style.FontStyle{Size: 12, Color: rgbHex(deck.Theme.BodyText)},
			&style.ParagraphStyle{Alignment: style.AlignCenter})
	}

	sec.AddText(deck.GeneratedAt.Format("2006-01-02 15:04"),
		&style.FontStyle{Size: 10, Color: rgbHex(deck.Theme.MutedText)},
		&style.ParagraphStyle{Alignment: style.AlignCenter})

	sec.AddTextBreak(1)

	for i := range deck.Sections {
		s.addSection(sec, deck, &deck.Sections[i])
	}

	if deck.Request.Footer != "" {
		sec.AddTextBreak(1)
		sec.AddText(truncateRunes(deck.Request.Footer, maxFooterRunes),
			&style.FontStyle{Size: 9, Color: rgbHex(deck.Theme.MutedText)},
			&style.ParagraphStyle{Alignment: style.AlignCenter})
	}

	data, err := doc.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to write Word file: %w", err)
	}

	return data, nil
}

// addSection writes one deck section as a level-2 outline entry
func (s *WordExportService) addSection(sec *goword.Section, deck *Deck, rs *ResolvedSection) {
	sec.AddTitle(truncateRunes(rs.Section.Heading, maxHeadingRunes), 2)

	for _, bullet := range rs.Section.Bullets {
		sec.AddText("• "+truncateRunes(bullet, maxBulletRunes),
			&style.FontStyle{Size: 11, Color: rgbHex(deck.Theme.BodyText)},
			&style.ParagraphStyle{Indent: 360})
	}

	for _, note := range rs.PlaceholderLines() {
		sec.AddText(note,
			&style.FontStyle{Size: 10, Italic: true, Color: rgbHex(deck.Theme.MutedText)},
			&style.ParagraphStyle{Indent: 360})
	}

	for i := range rs.Images {
		res := &rs.Images[i]
		if res.Failed() || res.Ref.Caption == "" {
			continue
		}
		sec.AddText("Image: "+truncateRunes(res.Ref.Caption, maxCaptionRunes),
			&style.FontStyle{Size: 10, Italic: true, Color: rgbHex(deck.Theme.MutedText)},
			&style.ParagraphStyle{Indent: 360})
	}

	if rs.Section.Table != nil && len(rs.Section.Table.Columns) > 0 {
		s.addTable(sec, deck, rs.Section.Table)
	}

	sec.AddTextBreak(1)
}

// addTable writes a section table
func (s *WordExportService) addTable(sec *goword.Section, deck *Deck, table *TableBlock) {
	maxCols := 6
	cols := table.Columns
	if len(cols) > maxCols {
		cols = cols[:maxCols]
	}

	colWidthTotal := 9000
	colWidth := colWidthTotal / len(cols)

	ts := &style.TableStyle{Width: colWidthTotal, Alignment: "center"}
	ts.SetAllBorders("single", 4, "D9D9D9")
	tbl := sec.AddTable(ts)
	tbl.Grid = make([]int, len(cols))
	for i := range tbl.Grid {
		tbl.Grid[i] = colWidth
	}

	headerRow := tbl.AddRow(0, &style.RowStyle{IsHeader: true})
	for _, column := range cols {
		headerRow.AddCell(colWidth, &style.CellStyle{
			Shading: &style.Shading{Fill: rgbHex(deck.Theme.Accent)},
		}).AddText(column, &style.FontStyle{Bold: true, Size: 9, Color: "FFFFFF"}, nil)
	}

	maxRows := 50
	rows := table.Rows
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	for _, rowData := range rows {
		row := tbl.AddRow(0, nil)
		for i := 0; i < len(cols) && i < len(rowData); i++ {
			cellValue := rowData[i]
			if len([]rune(cellValue)) > 40 {
				cellValue = string([]rune(cellValue)[:37]) + "..."
			}
			row.AddCell(colWidth, nil).AddText(cellValue, &style.FontStyle{Size: 9}, nil)
		}
	}

	if len(table.Rows) > maxRows {
		sec.AddText(fmt.Sprintf("Showing first %d of %d rows", maxRows, len(table.Rows)),
			&style.FontStyle{Size: 9, Color: rgbHex(deck.Theme.MutedText), Italic: true},
			nil)
	}
}
