package export

import (
	"bytes"
	"fmt"
	"strings"

	gospreadsheet "github.com/VantageDataChat/GoExcel"
)

// ExcelExportService renders deck tables as a workbook using GoExcel (pure Go)
type ExcelExportService struct{}

// NewExcelExportService creates a new Excel export service
func NewExcelExportService() *ExcelExportService {
	return &ExcelExportService{}
}

// ExportDeckToExcel writes one worksheet per section that carries a table.
// Sheet names follow the section headings, deduplicated and trimmed to the
// 31 character sheet name limit.
func (s *ExcelExportService) ExportDeckToExcel(deck *Deck) ([]byte, error) {
	type sheetData struct {
		name  string
		table *TableBlock
	}

	used := map[string]bool{}
	var sheets []sheetData
	for i := range deck.Sections {
		t := deck.Sections[i].Section.Table
		if t == nil || len(t.Columns) == 0 {
			continue
		}
		sheets = append(sheets, sheetData{
			name:  sheetNameFor(deck.Sections[i].Section.Heading, used),
			table: t,
		})
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no table data to export")
	}

	wb := gospreadsheet.New()

	headerStyle := gospreadsheet.NewStyle().
		SetFont(&gospreadsheet.Font{
			Bold:  true,
			Size:  11,
			Color: "FFFFFF",
		}).
		SetFill(&gospreadsheet.Fill{
			Type:  "solid",
			Color: rgbHex(deck.Theme.Accent),
		}).
		SetAlignment(&gospreadsheet.Alignment{
			Horizontal: gospreadsheet.AlignCenter,
			Vertical:   gospreadsheet.AlignMiddle,
		}).
		SetBorders(&gospreadsheet.Borders{
			Left:   gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "FFFFFF"},
			Top:    gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "FFFFFF"},
			Bottom: gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "FFFFFF"},
			Right:  gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "FFFFFF"},
		})

	dataStyle := gospreadsheet.NewStyle().
		SetFont(&gospreadsheet.Font{
			Size: 10,
		}).
		SetAlignment(&gospreadsheet.Alignment{
			Horizontal: gospreadsheet.AlignLeft,
			Vertical:   gospreadsheet.AlignMiddle,
			WrapText:   true,
		}).
		SetBorders(&gospreadsheet.Borders{
			Left:   gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "D9D9D9"},
			Top:    gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "D9D9D9"},
			Bottom: gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "D9D9D9"},
			Right:  gospreadsheet.Border{Style: gospreadsheet.BorderThin, Color: "D9D9D9"},
		})

	for sheetIdx, sheet := range sheets {
		var ws *gospreadsheet.Worksheet
		if sheetIdx == 0 {
			ws = wb.GetActiveSheet()
			ws.SetTitle(sheet.name)
		} else {
			var err error
			ws, err = wb.AddSheet(sheet.name)
			if err != nil {
				return nil, fmt.Errorf("failed to create sheet %s: %w", sheet.name, err)
			}
		}

		// Write headers
		for i, column := range sheet.table.Columns {
			cellName, _ := gospreadsheet.CellName(0, i)
			ws.SetCellValue(cellName, column)
			ws.SetCellStyle(cellName, headerStyle)

			runeLen := len([]rune(column))
			width := float64(runeLen) * 2.5
			if width < 12 {
				width = 12
			}
			if width > 60 {
				width = 60
			}
			ws.SetColumnWidth(i, width)
		}

		ws.SetRowHeight(0, 25)

		// Write data rows
		for rowIdx, rowData := range sheet.table.Rows {
			excelRow := rowIdx + 1
			for colIdx := 0; colIdx < len(sheet.table.Columns) && colIdx < len(rowData); colIdx++ {
				cellName, _ := gospreadsheet.CellName(excelRow, colIdx)
				ws.SetCellValue(cellName, rowData[colIdx])
				ws.SetCellStyle(cellName, dataStyle)
			}
			ws.SetRowHeight(excelRow, 20)
		}

		// Freeze header row
		ws.FreezePane("A2")
	}

	wb.Properties.Title = truncateRunes(deck.Request.Title, maxTitleRunes)
	wb.Properties.Creator = deck.Request.CreatorName()
	wb.Properties.Description = "Generated by DeckGen"
	wb.Properties.LastModifiedBy = deck.Request.CreatorName()

	var buf bytes.Buffer
	writer := gospreadsheet.NewXLSXWriter()
	if err := writer.Write(wb, &buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	return buf.Bytes(), nil
}

// sheetNameFor derives a legal, unused worksheet name from a heading.
func sheetNameFor(heading string, used map[string]bool) string {
	name := sanitizeSheetName(heading)
	if name == "" {
		name = "Sheet"
	}
	base := truncateRunes(name, 31)
	name = base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" %d", n)
		name = truncateRunes(base, 31-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

// sanitizeSheetName strips characters Excel rejects in worksheet names.
func sanitizeSheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, name)
	return strings.TrimSpace(cleaned)
}
