package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"deckgen/config"
	"deckgen/database"
	"deckgen/export"
	"deckgen/imaging"
	"deckgen/metrics"
)

// GeneratedDocument describes one stored output document in an API response.
type GeneratedDocument struct {
	Format      string `json:"format"`
	DownloadURL string `json:"download_url"`
	FileName    string `json:"file_name"`
}

// DeckResponse is the body returned by the deck creation endpoints. The
// top-level download_url and file_name always point at the presentation;
// Files lists every produced document including the presentation itself.
type DeckResponse struct {
	DownloadURL string              `json:"download_url"`
	FileName    string              `json:"file_name"`
	Files       []GeneratedDocument `json:"files"`
}

// DeckFacadeService owns the deck generation flow: validate the request,
// resolve its images, render every requested format and register the stored
// documents.
type DeckFacadeService struct {
	ctx         context.Context
	cfg         config.Config
	fileService *database.FileService
	fetcher     *imaging.Fetcher
	resolver    *imaging.Resolver
	metrics     *metrics.Metrics
	themes      map[string]export.Theme
	logger      func(string)
}

// NewDeckFacadeService creates a new DeckFacadeService instance.
func NewDeckFacadeService(
	cfg config.Config,
	fileService *database.FileService,
	fetcher *imaging.Fetcher,
	resolver *imaging.Resolver,
	m *metrics.Metrics,
	logger func(string),
) *DeckFacadeService {
	return &DeckFacadeService{
		cfg:         cfg,
		fileService: fileService,
		fetcher:     fetcher,
		resolver:    resolver,
		metrics:     m,
		themes:      export.BuiltinThemes(),
		logger:      logger,
	}
}

func (d *DeckFacadeService) Name() string {
	return "deck"
}

// Initialize prepares the output directory, merges the theme registry over
// the built-in palettes and publishes the current storage totals.
func (d *DeckFacadeService) Initialize(ctx context.Context) error {
	d.ctx = ctx
	if err := os.MkdirAll(d.cfg.GeneratedDir, 0755); err != nil {
		return WrapError("DeckFacade", "Initialize", fmt.Errorf("failed to create generated dir %s: %w", d.cfg.GeneratedDir, err))
	}
	d.loadThemeRegistry(ctx)
	d.publishStorageStats()
	return nil
}

func (d *DeckFacadeService) Shutdown() error {
	return nil
}

// log 记录日志
func (d *DeckFacadeService) log(msg string) {
	if d.logger != nil {
		d.logger(msg)
	}
}

// loadThemeRegistry fetches the configured theme registry once and merges
// its palettes over the built-ins by name. A failed fetch or an invalid
// document leaves the built-ins in place.
func (d *DeckFacadeService) loadThemeRegistry(ctx context.Context) {
	if d.cfg.ThemeRegistryURL == "" {
		return
	}
	res, err := d.fetcher.Fetch(ctx, d.cfg.ThemeRegistryURL)
	if err != nil {
		d.log(fmt.Sprintf("[THEMES] registry fetch failed, using built-in palettes: %v", err))
		return
	}
	themes, err := export.ParseThemeRegistry(res.Body)
	if err != nil {
		d.log(fmt.Sprintf("[THEMES] registry document invalid, using built-in palettes: %v", err))
		return
	}
	for _, t := range themes {
		d.themes[t.Name] = t
	}
	d.log(fmt.Sprintf("[THEMES] loaded %d palettes from %s", len(themes), d.cfg.ThemeRegistryURL))
}

// ThemeNames returns the available palette names in sorted order.
func (d *DeckFacadeService) ThemeNames() []string {
	names := make([]string, 0, len(d.themes))
	for name := range d.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Themes returns the available palettes sorted by name.
func (d *DeckFacadeService) Themes() []export.Theme {
	themes := make([]export.Theme, 0, len(d.themes))
	for _, name := range d.ThemeNames() {
		themes = append(themes, d.themes[name])
	}
	return themes
}

// Generate validates the request, resolves every referenced image, renders
// the requested formats and stores each produced document. The source tag
// ("create" or "from-url") only feeds metrics.
func (d *DeckFacadeService) Generate(ctx context.Context, req *export.DeckRequest, source string) (*DeckResponse, error) {
	start := time.Now()
	resp, err := d.generate(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	d.metrics.ObserveBuildDuration(source, status, time.Since(start))
	return resp, err
}

func (d *DeckFacadeService) generate(ctx context.Context, req *export.DeckRequest) (*DeckResponse, error) {
	if d.fileService == nil {
		return nil, fmt.Errorf("file service not initialized")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, ok := d.themes[req.ThemeName()]; !ok {
		return nil, &export.ValidationError{
			Field:   "theme",
			Message: fmt.Sprintf("unknown theme %q, valid themes: %s", req.Theme, strings.Join(d.ThemeNames(), ", ")),
		}
	}

	deck := d.buildDeck(ctx, req)

	formats := req.OutputFormats()
	files := make([]GeneratedDocument, 0, len(formats))
	for _, format := range formats {
		data, err := renderFormat(deck, format)
		if err != nil {
			return nil, WrapError("DeckFacade", "Generate", WrapOperationError("render "+format, err))
		}
		doc, err := d.store(format, data)
		if err != nil {
			return nil, WrapError("DeckFacade", "Generate", err)
		}
		files = append(files, *doc)
	}

	d.publishStorageStats()
	d.log(fmt.Sprintf("[DECK] generated %q: %d sections, %d files", req.Title, len(req.Slides), len(files)))

	return &DeckResponse{
		DownloadURL: files[0].DownloadURL,
		FileName:    files[0].FileName,
		Files:       files,
	}, nil
}

// buildDeck resolves the logo and every section image sequentially, in
// request order. Image failures are folded into the resolved sections and
// never abort the build.
func (d *DeckFacadeService) buildDeck(ctx context.Context, req *export.DeckRequest) *export.Deck {
	deck := &export.Deck{
		Request:     req,
		Theme:       export.PickTheme(d.themes, req.ThemeName()),
		GeneratedAt: time.Now(),
	}

	if req.LogoURL != "" {
		logo, err := d.resolver.ResolveOne(ctx, imaging.ImageReference{URL: req.LogoURL})
		d.countImageResult(err)
		if err != nil {
			d.log(fmt.Sprintf("[DECK] logo unavailable, continuing without: %v", err))
		} else {
			deck.Logo = logo
		}
	}

	deck.Sections = make([]export.ResolvedSection, 0, len(req.Slides))
	for i := range req.Slides {
		resolved := d.resolver.Resolve(ctx, req.Slides[i].Images)
		for j := range resolved {
			d.countImageResult(resolved[j].Err)
		}
		deck.Sections = append(deck.Sections, export.ResolvedSection{
			Section: req.Slides[i],
			Images:  resolved,
		})
	}
	return deck
}

// countImageResult feeds one resolution outcome into the metrics counters.
func (d *DeckFacadeService) countImageResult(err error) {
	var fetchErr *imaging.FetchError
	switch {
	case err == nil:
		d.metrics.IncImageResolution("ok")
	case errors.As(err, &fetchErr):
		d.metrics.IncImageResolution("fetch_error")
	default:
		d.metrics.IncImageResolution("format_error")
	}
}

// renderFormat dispatches to the per-format export service.
func renderFormat(deck *export.Deck, format string) ([]byte, error) {
	switch format {
	case export.FormatPPTX:
		return export.NewPPTExportService().ExportDeckToPPTX(deck)
	case export.FormatPDF:
		return export.NewPDFExportService().ExportDeckToPDF(deck)
	case export.FormatDOCX:
		return export.NewWordExportService().ExportDeckToWord(deck)
	case export.FormatXLSX:
		return export.NewExcelExportService().ExportDeckToExcel(deck)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// store writes a rendered document under a fresh random name and records it
// in the registry.
func (d *DeckFacadeService) store(format string, data []byte) (*GeneratedDocument, error) {
	fileID := strings.ReplaceAll(uuid.New().String(), "-", "")
	fileName := fileID + "." + format
	path := filepath.Join(d.cfg.GeneratedDir, fileName)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, WrapOperationError("store generated file", err)
	}
	if _, err := d.fileService.SaveFile(database.GeneratedFile{
		ID:        fileID,
		Filename:  fileName,
		Format:    format,
		SizeBytes: int64(len(data)),
	}); err != nil {
		return nil, err
	}

	return &GeneratedDocument{
		Format:      format,
		DownloadURL: d.cfg.PublicBaseURL + "/files/" + fileName,
		FileName:    fileName,
	}, nil
}

// publishStorageStats pushes the registry totals to the metrics gauges.
func (d *DeckFacadeService) publishStorageStats() {
	stats, err := d.fileService.Stats()
	if err != nil {
		d.log(fmt.Sprintf("[DECK] storage stats unavailable: %v", err))
		return
	}
	d.metrics.SetStorageStats(stats.TotalFiles, stats.TotalBytes)
}
