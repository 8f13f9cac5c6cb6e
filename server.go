package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deckgen/config"
	"deckgen/database"
	"deckgen/export"
	"deckgen/imaging"
	"deckgen/metrics"
)

// mediaTypes maps an output format to the Content-Type served on download.
var mediaTypes = map[string]string{
	export.FormatPPTX: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	export.FormatPDF:  "application/pdf",
	export.FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	export.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ImportRequest is the body of POST /pptx/from-url.
type ImportRequest struct {
	URL         string `json:"url"`
	MaxSections int    `json:"max_sections"`
}

// Server wires the HTTP surface: gin engine, routes, middleware and the
// http.Server lifecycle.
type Server struct {
	cfg           config.Config
	deckService   *DeckFacadeService
	importService *ImportFacadeService
	fileService   *database.FileService
	metrics       *metrics.Metrics
	logger        func(string)

	engine     *gin.Engine
	httpServer *http.Server
}

// NewServer builds the gin engine, registers all routes and prepares the
// underlying http.Server. Call Start to begin serving.
func NewServer(
	cfg config.Config,
	deckService *DeckFacadeService,
	importService *ImportFacadeService,
	fileService *database.FileService,
	m *metrics.Metrics,
	logger func(string),
) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	engine.Use(cors.New(corsConfig))

	server := &Server{
		cfg:           cfg,
		deckService:   deckService,
		importService: importService,
		fileService:   fileService,
		metrics:       m,
		logger:        logger,
		engine:        engine,
	}

	server.httpServer = &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     engine,
		ReadTimeout: 30 * time.Second,
		// Deck builds fetch remote images inside the request and can
		// run long.
		WriteTimeout: 120 * time.Second,
	}

	server.setupRoutes()
	return server
}

// setupRoutes registers the public endpoints.
func (s *Server) setupRoutes() {
	s.engine.GET("/", s.handleRoot)
	s.engine.POST("/pptx/create", s.handleCreate)
	s.engine.POST("/pptx/from-url", s.handleCreateFromURL)
	s.engine.GET("/files/:name", s.handleDownload)
	s.engine.GET("/themes", s.handleThemes)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// handleRoot is the liveness probe.
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"endpoints": []string{"/pptx/create", "/pptx/from-url", "/files/{name}", "/themes", "/metrics"},
	})
}

// handleCreate generates a deck from a JSON request body.
func (s *Server) handleCreate(c *gin.Context) {
	var req export.DeckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	resp, err := s.deckService.Generate(c.Request.Context(), &req, "create")
	if err != nil {
		s.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleCreateFromURL extracts a deck from a web page and generates it.
func (s *Server) handleCreateFromURL(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if !imaging.IsValidHTTPURL(req.URL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url: must be a valid http(s) URL"})
		return
	}

	deckReq, err := s.importService.ImportPage(c.Request.Context(), req.URL, req.MaxSections)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("failed to import page: %v", err)})
		return
	}

	resp, err := s.deckService.Generate(c.Request.Context(), deckReq, "from-url")
	if err != nil {
		s.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleDownload serves a stored document by exact file name.
func (s *Server) handleDownload(c *gin.Context) {
	name := c.Param("name")

	file, err := s.fileService.GetFileByName(name)
	if err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		s.log(fmt.Sprintf("[HTTP] file lookup failed for %s: %v", name, err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up file"})
		return
	}

	// The path is joined from the registry row, never from the raw
	// request parameter.
	path := filepath.Join(s.cfg.GeneratedDir, file.Filename)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	if err := s.fileService.IncrementDownloads(file.Filename); err != nil {
		s.log(fmt.Sprintf("[HTTP] download count update failed for %s: %v", file.Filename, err))
	}
	s.metrics.IncDownload(file.Format)

	mediaType := mediaTypes[file.Format]
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	c.Header("Content-Type", mediaType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.File(path)
}

// handleThemes lists the available palettes.
func (s *Server) handleThemes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"themes": s.deckService.Themes()})
}

// respondGenerationError maps a generation failure onto a status code.
func (s *Server) respondGenerationError(c *gin.Context, err error) {
	var validationErr *export.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
		return
	}
	s.log(fmt.Sprintf("[HTTP] deck generation failed: %v", err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate deck"})
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	s.log(fmt.Sprintf("[HTTP] listening on %s", s.cfg.ListenAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

// log 记录日志
func (s *Server) log(msg string) {
	if s.logger != nil {
		s.logger(msg)
	}
}
