package export

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	ppt "github.com/VantageDataChat/GoPPT"

	"deckgen/imaging"
)

// PPTExportService renders a resolved deck to PowerPoint format using GoPPT (pure Go)
type PPTExportService struct{}

// NewPPTExportService creates a new PowerPoint export service
func NewPPTExportService() *PPTExportService {
	return &PPTExportService{}
}

// PPT布局常量 - 16:9宽屏比例
const (
	emuPerInch = 914400

	// 页面边距 (EMU)
	marginLeft   = int64(0.4 * emuPerInch)
	marginRight  = int64(0.4 * emuPerInch)
	marginTop    = int64(0.4 * emuPerInch)
	marginBottom = int64(0.3 * emuPerInch)

	// 内容区域 (EMU)
	contentWidth  = int64(9.2 * emuPerInch)
	contentHeight = int64(4.9 * emuPerInch)
	slideWidth    = int64(10.0 * emuPerInch)
	slideHeight   = int64(5.625 * emuPerInch)

	// 字体大小 (pt)
	fontTitle     = 36
	fontSubtitle  = 20
	fontHeading   = 28
	fontBody      = 14
	fontSmall     = 12
	fontTableHead = 11
	fontTableCell = 10
	fontFooter    = 9
)

// Image flow layout, in inches.
const (
	defaultImageWidthIn = 6.5
	imageStartYIn       = 2.1
	captionGapIn        = 0.08
	captionHeightIn     = 0.36
	imageGapIn          = 0.24
	logoHeightIn        = 0.7
	maxLogoWidthIn      = 3.0
)

// helper: create a solid fill
func solidFill(argb string) *ppt.Fill {
	return ppt.NewFill().SetSolid(ppt.NewColor(argb))
}

// helper: set paragraph alignment to center
func alignCenter(p *ppt.Paragraph) {
	p.SetAlignment(ppt.NewAlignment().SetHorizontal(ppt.HorizontalCenter))
}

// helper: set paragraph alignment to right
func alignRight(p *ppt.Paragraph) {
	p.SetAlignment(ppt.NewAlignment().SetHorizontal(ppt.HorizontalRight))
}

// ExportDeckToPPTX renders the deck into a PPTX file.
func (s *PPTExportService) ExportDeckToPPTX(deck *Deck) ([]byte, error) {
	p := ppt.New()
	p.GetDocumentProperties().Title = truncateRunes(deck.Request.Title, maxTitleRunes)
	p.GetDocumentProperties().Creator = deck.Request.CreatorName()

	s.addTitleSlide(p, deck)

	for i := range deck.Sections {
		s.addSectionSlide(p, deck, &deck.Sections[i])
		if t := deck.Sections[i].Section.Table; t != nil && len(t.Columns) > 0 {
			s.addTableSlides(p, deck, deck.Sections[i].Section.Heading, t)
		}
	}

	w, err := ppt.NewWriter(p, ppt.WriterPowerPoint2007)
	if err != nil {
		return nil, fmt.Errorf("failed to create PPT writer: %w", err)
	}

	var buf bytes.Buffer
	if err := w.(*ppt.PPTXWriter).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to save PPT: %w", err)
	}

	return buf.Bytes(), nil
}

// addTitleSlide fills the opening slide with title, subtitle and branding
func (s *PPTExportService) addTitleSlide(p *ppt.Presentation, deck *Deck) {
	theme := deck.Theme
	slide := p.GetActiveSlide()

	// 顶部装饰条
	topBar := slide.CreateRichTextShape()
	topBar.SetOffsetX(0).SetOffsetY(0)
	topBar.SetWidth(slideWidth).SetHeight(int64(0.15 * emuPerInch))
	topBar.SetFill(solidFill(theme.Accent))

	// Logo above the title when one resolved
	if deck.Logo != nil {
		logoW, logoH := logoSize(deck.Logo)
		logoShape := slide.CreateDrawingShape()
		logoShape.SetImageData(deck.Logo.Data, deck.Logo.MIMEType)
		logoShape.SetOffsetX(int64((10.0 - logoW) / 2 * emuPerInch)).SetOffsetY(int64(0.55 * emuPerInch))
		logoShape.SetWidth(int64(logoW * emuPerInch)).SetHeight(int64(logoH * emuPerInch))
	}

	// Title text
	titleShape := slide.CreateRichTextShape()
	titleShape.SetOffsetX(marginLeft).SetOffsetY(int64(1.6 * emuPerInch))
	titleShape.SetWidth(contentWidth).SetHeight(int64(1.0 * emuPerInch))
	tr := titleShape.CreateTextRun(truncateRunes(deck.Request.Title, maxTitleRunes))
	tr.GetFont().SetSize(fontTitle).SetBold(true).SetColor(ppt.NewColor(theme.TitleText))
	alignCenter(titleShape.GetActiveParagraph())

	// Subtitle band
	if deck.Request.Subtitle != "" {
		subShape := slide.CreateRichTextShape()
		subShape.SetOffsetX(int64(1.0 * emuPerInch)).SetOffsetY(int64(2.8 * emuPerInch))
		subShape.SetWidth(int64(8.0 * emuPerInch)).SetHeight(int64(0.8 * emuPerInch))
		subShape.SetFill(solidFill(theme.BandFill))

		subtitle := deck.Request.Subtitle
		if len([]rune(subtitle)) > 80 {
			subtitle = string([]rune(subtitle)[:77]) + "..."
		}
		subTr := subShape.CreateTextRun(subtitle)
		subTr.GetFont().SetSize(fontSubtitle).SetColor(ppt.NewColor(theme.BodyText))
		alignCenter(subShape.GetActiveParagraph())
	}

	// Timestamp
	tsShape := slide.CreateRichTextShape()
	tsShape.SetOffsetX(marginLeft).SetOffsetY(int64(4.0 * emuPerInch))
	tsShape.SetWidth(contentWidth).SetHeight(int64(0.4 * emuPerInch))
	tsTr := tsShape.CreateTextRun(deck.GeneratedAt.Format("2006-01-02 15:04"))
	tsTr.GetFont().SetSize(fontSmall).SetColor(ppt.NewColor(theme.MutedText))
	alignCenter(tsShape.GetActiveParagraph())

	// 底部装饰条
	bottomBar := slide.CreateRichTextShape()
	bottomBar.SetOffsetX(0).SetOffsetY(int64(5.5 * emuPerInch))
	bottomBar.SetWidth(slideWidth).SetHeight(int64(0.125 * emuPerInch))
	bottomBar.SetFill(solidFill(theme.Accent))

	s.addFooter(slide, deck)
}

// addSlideHeader adds a consistent header to content slides
func (s *PPTExportService) addSlideHeader(slide *ppt.Slide, theme Theme, title string) {
	// 顶部装饰条
	topBar := slide.CreateRichTextShape()
	topBar.SetOffsetX(0).SetOffsetY(0)
	topBar.SetWidth(slideWidth).SetHeight(int64(0.08 * emuPerInch))
	topBar.SetFill(solidFill(theme.Accent))

	// Title
	titleShape := slide.CreateRichTextShape()
	titleShape.SetOffsetX(marginLeft).SetOffsetY(int64(0.3 * emuPerInch))
	titleShape.SetWidth(contentWidth).SetHeight(int64(0.6 * emuPerInch))
	tr := titleShape.CreateTextRun(title)
	tr.GetFont().SetSize(fontHeading).SetBold(true).SetColor(ppt.NewColor(theme.TitleText))
}

// addSectionSlide renders one section: heading, bullets, then images flowing
// downward. Failed images leave a placeholder note among the bullets.
func (s *PPTExportService) addSectionSlide(p *ppt.Presentation, deck *Deck, rs *ResolvedSection) {
	theme := deck.Theme
	slide := p.CreateSlide()
	s.addSlideHeader(slide, theme, truncateRunes(rs.Section.Heading, maxHeadingRunes))

	lines := make([]string, 0, len(rs.Section.Bullets))
	for _, b := range rs.Section.Bullets {
		lines = append(lines, truncateRunes(b, maxBulletRunes))
	}
	placeholders := rs.PlaceholderLines()

	if len(lines) > 0 || len(placeholders) > 0 {
		bodyShape := slide.CreateRichTextShape()
		bodyShape.SetOffsetX(marginLeft).SetOffsetY(int64(1.0 * emuPerInch))
		bodyShape.SetWidth(contentWidth).SetHeight(int64(4.3 * emuPerInch))

		first := true
		for _, line := range lines {
			for j, wrapped := range s.wrapText(line, 85) {
				if !first {
					bodyShape.CreateParagraph()
				}
				first = false
				text := wrapped
				if j == 0 {
					text = "• " + text
				}
				tr := bodyShape.CreateTextRun(text)
				tr.GetFont().SetSize(fontBody).SetColor(ppt.NewColor(theme.BodyText))
			}
		}
		for _, line := range placeholders {
			for _, wrapped := range s.wrapText(line, 85) {
				if !first {
					bodyShape.CreateParagraph()
				}
				first = false
				tr := bodyShape.CreateTextRun(wrapped)
				tr.GetFont().SetSize(fontBody).SetColor(ppt.NewColor(theme.MutedText))
			}
		}
	}

	// Images flow from a fixed start, each centered horizontally
	currentY := imageStartYIn
	for i := range rs.Images {
		res := &rs.Images[i]
		if res.Failed() {
			continue
		}
		w, h := placedImageSize(res.Ref, res.Image)

		imgShape := slide.CreateDrawingShape()
		imgShape.SetImageData(res.Image.Data, res.Image.MIMEType)
		imgShape.SetOffsetX(int64((10.0 - w) / 2 * emuPerInch)).SetOffsetY(int64(currentY * emuPerInch))
		imgShape.SetWidth(int64(w * emuPerInch)).SetHeight(int64(h * emuPerInch))
		currentY += h

		if res.Ref.Caption != "" {
			capShape := slide.CreateRichTextShape()
			capShape.SetOffsetX(int64((10.0 - w) / 2 * emuPerInch)).SetOffsetY(int64((currentY + captionGapIn) * emuPerInch))
			capShape.SetWidth(int64(w * emuPerInch)).SetHeight(int64(captionHeightIn * emuPerInch))
			capTr := capShape.CreateTextRun(truncateRunes(res.Ref.Caption, maxCaptionRunes))
			capTr.GetFont().SetSize(fontSmall).SetColor(ppt.NewColor(theme.MutedText))
			alignCenter(capShape.GetActiveParagraph())
			currentY += captionGapIn + captionHeightIn
		}
		currentY += imageGapIn
	}

	s.addFooter(slide, deck)
}

// addTableSlides renders a section table as dedicated slides (may span
// multiple slides)
func (s *PPTExportService) addTableSlides(p *ppt.Presentation, deck *Deck, heading string, table *TableBlock) {
	maxCols := 6
	cols := table.Columns
	if len(cols) > maxCols {
		cols = cols[:maxCols]
	}

	maxRowsPerSlide := 14
	rows := table.Rows
	totalRows := len(rows)

	slideNum := 1
	for startRow := 0; startRow < totalRows; startRow += maxRowsPerSlide {
		endRow := startRow + maxRowsPerSlide
		if endRow > totalRows {
			endRow = totalRows
		}
		pageRows := rows[startRow:endRow]
		s.createTableSlide(p, deck, heading, cols, pageRows, slideNum, startRow, endRow, totalRows, len(table.Columns) > maxCols)
		slideNum++
	}

	if totalRows == 0 {
		s.createTableSlide(p, deck, heading, cols, [][]string{}, 1, 0, 0, 0, false)
	}
}

// createTableSlide creates a single table slide
func (s *PPTExportService) createTableSlide(p *ppt.Presentation, deck *Deck, heading string, cols []string, rows [][]string, slideNum int, startRow int, endRow int, totalRows int, colsTruncated bool) {
	theme := deck.Theme
	slide := p.CreateSlide()

	title := truncateRunes(heading, maxHeadingRunes)
	if slideNum > 1 {
		title = fmt.Sprintf("%s (%d)", title, slideNum)
	}
	s.addSlideHeader(slide, theme, title)

	tableStartY := 1.0
	tableWidth := 9.2
	colWidth := tableWidth / float64(len(cols))
	headerHeight := 0.35
	rowHeight := 0.28

	// Table header
	headerShape := slide.CreateRichTextShape()
	headerShape.SetOffsetX(marginLeft).SetOffsetY(int64(tableStartY * emuPerInch))
	headerShape.SetWidth(int64(tableWidth * emuPerInch)).SetHeight(int64(headerHeight * emuPerInch))
	headerShape.SetFill(solidFill(theme.Accent))

	headerText := ""
	for i, col := range cols {
		if i > 0 {
			headerText += "    │    "
		}
		colTitle := col
		colRunes := []rune(colTitle)
		maxColLen := int(colWidth * 3.5)
		if maxColLen < 12 {
			maxColLen = 12
		}
		if len(colRunes) > maxColLen {
			colTitle = string(colRunes[:maxColLen-2]) + ".."
		}
		headerText += colTitle
	}
	headerTr := headerShape.CreateTextRun(headerText)
	headerTr.GetFont().SetSize(fontTableHead).SetBold(true).SetColor(ppt.ColorWhite)
	alignCenter(headerShape.GetActiveParagraph())

	// Data rows
	currentY := tableStartY + headerHeight
	for rowIdx, rowData := range rows {
		rowShape := slide.CreateRichTextShape()
		rowShape.SetOffsetX(marginLeft).SetOffsetY(int64(currentY * emuPerInch))
		rowShape.SetWidth(int64(tableWidth * emuPerInch)).SetHeight(int64(rowHeight * emuPerInch))

		if rowIdx%2 == 0 {
			rowShape.SetFill(solidFill(theme.BandFill))
		} else {
			rowShape.SetFill(solidFill(theme.ZebraFill))
		}

		rowText := ""
		for i := 0; i < len(cols) && i < len(rowData); i++ {
			if i > 0 {
				rowText += "    │    "
			}
			cellValue := rowData[i]
			cellRunes := []rune(cellValue)
			maxCellLen := int(colWidth * 3.5)
			if maxCellLen < 12 {
				maxCellLen = 12
			}
			if len(cellRunes) > maxCellLen {
				cellValue = string(cellRunes[:maxCellLen-2]) + ".."
			}
			rowText += cellValue
		}
		rowTr := rowShape.CreateTextRun(rowText)
		rowTr.GetFont().SetSize(fontTableCell).SetColor(ppt.NewColor(theme.BodyText))
		alignCenter(rowShape.GetActiveParagraph())

		currentY += rowHeight
	}

	// Pagination info
	if totalRows > 0 {
		infoShape := slide.CreateRichTextShape()
		infoShape.SetOffsetX(marginLeft).SetOffsetY(int64(5.2 * emuPerInch))
		infoShape.SetWidth(contentWidth).SetHeight(int64(0.25 * emuPerInch))

		infoText := fmt.Sprintf("Rows %d-%d of %d", startRow+1, endRow, totalRows)
		if colsTruncated {
			infoText += " (columns truncated)"
		}
		infoTr := infoShape.CreateTextRun(infoText)
		infoTr.GetFont().SetSize(fontFooter).SetColor(ppt.NewColor(theme.MutedText))
		alignRight(infoShape.GetActiveParagraph())
	}

	s.addFooter(slide, deck)
}

// addFooter places the deck footer near the bottom of a slide
func (s *PPTExportService) addFooter(slide *ppt.Slide, deck *Deck) {
	if deck.Request.Footer == "" {
		return
	}
	footerShape := slide.CreateRichTextShape()
	footerShape.SetOffsetX(marginLeft).SetOffsetY(int64(5.28 * emuPerInch))
	footerShape.SetWidth(contentWidth).SetHeight(int64(0.28 * emuPerInch))
	tr := footerShape.CreateTextRun(truncateRunes(deck.Request.Footer, maxFooterRunes))
	tr.GetFont().SetSize(fontFooter).SetColor(ppt.NewColor(deck.Theme.MutedText))
	alignCenter(footerShape.GetActiveParagraph())
}

// imageAspect returns the height/width ratio of decodable image data. Data
// that does not decode falls back to a 4:3 ratio.
func imageAspect(img *imaging.EmbeddableImage) float64 {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return 0.75
	}
	return float64(cfg.Height) / float64(cfg.Width)
}

// placedImageSize computes the placement size in inches. Explicit dimensions
// from the request win; a missing dimension is derived from the image aspect
// ratio, and with no explicit size the image is scaled to the default width.
func placedImageSize(ref imaging.ImageReference, img *imaging.EmbeddableImage) (float64, float64) {
	switch {
	case ref.WidthInch > 0 && ref.HeightInch > 0:
		return ref.WidthInch, ref.HeightInch
	case ref.WidthInch > 0:
		return ref.WidthInch, ref.WidthInch * imageAspect(img)
	case ref.HeightInch > 0:
		return ref.HeightInch / imageAspect(img), ref.HeightInch
	default:
		return defaultImageWidthIn, defaultImageWidthIn * imageAspect(img)
	}
}

// logoSize scales the logo to a fixed height, capping very wide marks.
func logoSize(img *imaging.EmbeddableImage) (float64, float64) {
	aspect := imageAspect(img)
	w := logoHeightIn / aspect
	h := logoHeightIn
	if w > maxLogoWidthIn {
		w = maxLogoWidthIn
		h = w * aspect
	}
	return w, h
}

// wrapText wraps text to fit within maxLen characters
func (s *PPTExportService) wrapText(text string, maxLen int) []string {
	if len(text) == 0 {
		return []string{""}
	}

	var lines []string
	runes := []rune(text)

	if s.containsChinese(text) {
		maxLen = maxLen * 2 / 3
	}

	for len(runes) > 0 {
		if len(runes) <= maxLen {
			lines = append(lines, string(runes))
			break
		}

		breakPoint := maxLen
		for i := maxLen; i > maxLen/2; i-- {
			if runes[i] == ' ' || runes[i] == '，' || runes[i] == '。' || runes[i] == '、' || runes[i] == '；' {
				breakPoint = i + 1
				break
			}
		}

		lines = append(lines, string(runes[:breakPoint]))
		runes = runes[breakPoint:]

		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}

	return lines
}

// containsChinese checks if text contains Chinese characters
func (s *PPTExportService) containsChinese(text string) bool {
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			return true
		}
	}
	return false
}
