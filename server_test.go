package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgen/config"
	"deckgen/database"
	"deckgen/export"
	"deckgen/imaging"
	"deckgen/metrics"
	"deckgen/webimport"
)

// testStack bundles the wired components behind a test server. Private-host
// fetching is enabled so image fixtures can run on loopback httptest servers.
type testStack struct {
	server      *Server
	deckService *DeckFacadeService
	fileService *database.FileService
	cfg         config.Config
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	dir := t.TempDir()

	db, err := database.InitDB(filepath.Join(dir, "deckgen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{
		ListenAddr:        ":0",
		PublicBaseURL:     "http://deckgen.test",
		GeneratedDir:      filepath.Join(dir, "generated"),
		FilesDB:           filepath.Join(dir, "deckgen.db"),
		FetchTimeoutSecs:  5,
		FetchMaxBytes:     20 << 20,
		AllowPrivateHosts: true,
	}

	fileService := database.NewFileService(db)
	m := metrics.MustNewMetrics(prometheus.NewRegistry())
	fetcher := imaging.NewFetcher(imaging.FetcherOptions{
		Timeout:           5 * time.Second,
		MaxBytes:          cfg.FetchMaxBytes,
		AllowPrivateHosts: true,
	})
	resolver := imaging.NewResolver(fetcher, imaging.NewNormalizer(imaging.NewSVGRasterizer()), nil)
	importer := webimport.NewImporter(webimport.Options{
		Timeout:           5 * time.Second,
		AllowPrivateHosts: true,
	})

	deckService := NewDeckFacadeService(cfg, fileService, fetcher, resolver, m, nil)
	importService := NewImportFacadeService(importer, nil)
	require.NoError(t, deckService.Initialize(context.Background()))
	require.NoError(t, importService.Initialize(context.Background()))

	return &testStack{
		server:      NewServer(cfg, deckService, importService, fileService, m, nil),
		deckService: deckService,
		fileService: fileService,
		cfg:         cfg,
	}
}

func (ts *testStack) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	ts.server.engine.ServeHTTP(w, req)
	return w
}

func (ts *testStack) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return ts.postRaw(t, path, string(data))
}

func (ts *testStack) postRaw(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.server.engine.ServeHTTP(w, req)
	return w
}

func decodeDeckResponse(t *testing.T, w *httptest.ResponseRecorder) DeckResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp DeckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

// testPNG encodes a solid PNG of the given pixel size.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 59, G: 130, B: 246, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// servePNG runs an image server returning its URL and a request counter.
func servePNG(t *testing.T, w, h int) (string, *atomic.Int32) {
	t.Helper()
	data := testPNG(t, w, h)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		rw.Header().Set("Content-Type", "image/png")
		rw.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv.URL, &hits
}

func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err, "output is not a readable zip archive")

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = content
	}
	return entries
}

var slideXMLPattern = regexp.MustCompile(`^ppt/slides/slide[0-9]+\.xml$`)

func countSlideEntries(entries map[string][]byte) int {
	count := 0
	for name := range entries {
		if slideXMLPattern.MatchString(name) {
			count++
		}
	}
	return count
}

func allSlideXML(entries map[string][]byte) string {
	var sb strings.Builder
	for name, content := range entries {
		if slideXMLPattern.MatchString(name) {
			sb.Write(content)
		}
	}
	return sb.String()
}

func hasMediaEntry(entries map[string][]byte) bool {
	for name := range entries {
		if strings.HasPrefix(name, "ppt/media/") {
			return true
		}
	}
	return false
}

func TestRootEndpoint(t *testing.T) {
	ts := newTestStack(t)

	w := ts.get(t, "/")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status    string   `json:"status"`
		Endpoints []string `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Contains(t, body.Endpoints, "/pptx/create")
	assert.Contains(t, body.Endpoints, "/files/{name}")
}

func TestCreateDeckMinimalProducesDownloadablePPTX(t *testing.T) {
	ts := newTestStack(t)

	w := ts.postJSON(t, "/pptx/create", map[string]any{
		"title":  "Launch Plan",
		"slides": []map[string]any{{"heading": "Timeline", "bullets": []string{"Kickoff in May"}}},
	})
	resp := decodeDeckResponse(t, w)

	assert.Regexp(t, `^[0-9a-f]{32}\.pptx$`, resp.FileName)
	assert.Equal(t, ts.cfg.PublicBaseURL+"/files/"+resp.FileName, resp.DownloadURL)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "pptx", resp.Files[0].Format)
	assert.Equal(t, resp.DownloadURL, resp.Files[0].DownloadURL)

	dl := ts.get(t, "/files/"+resp.FileName)
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, mediaTypes[export.FormatPPTX], dl.Header().Get("Content-Type"))
	assert.Contains(t, dl.Header().Get("Content-Disposition"), "attachment")

	entries := unzip(t, dl.Body.Bytes())
	assert.Equal(t, 2, countSlideEntries(entries), "title slide plus one content slide")
	xml := allSlideXML(entries)
	assert.Contains(t, xml, "Launch Plan")
	assert.Contains(t, xml, "Kickoff in May")
}

func TestCreateDeckEmbedsFetchedImage(t *testing.T) {
	ts := newTestStack(t)
	imgURL, hits := servePNG(t, 8, 6)

	w := ts.postJSON(t, "/pptx/create", map[string]any{
		"title": "Metrics Review",
		"slides": []map[string]any{{
			"heading": "Charts",
			"images":  []map[string]any{{"url": imgURL, "caption": "Latency trend"}},
		}},
	})
	resp := decodeDeckResponse(t, w)
	assert.Equal(t, int32(1), hits.Load(), "one fetch per image reference")

	dl := ts.get(t, "/files/"+resp.FileName)
	require.Equal(t, http.StatusOK, dl.Code)

	entries := unzip(t, dl.Body.Bytes())
	assert.True(t, hasMediaEntry(entries), "fetched image embedded under ppt/media/")
	xml := allSlideXML(entries)
	assert.Contains(t, xml, "Latency trend")
	assert.NotContains(t, xml, "[Image failed")
}

func TestCreateDeckKeepsGoingOnBrokenImage(t *testing.T) {
	ts := newTestStack(t)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(broken.Close)

	w := ts.postJSON(t, "/pptx/create", map[string]any{
		"title": "Resilience",
		"slides": []map[string]any{{
			"heading": "Findings",
			"bullets": []string{"Everything else survives"},
			"images":  []map[string]any{{"url": broken.URL + "/chart.png"}},
		}},
	})
	resp := decodeDeckResponse(t, w)

	dl := ts.get(t, "/files/"+resp.FileName)
	require.Equal(t, http.StatusOK, dl.Code)

	xml := allSlideXML(unzip(t, dl.Body.Bytes()))
	assert.Contains(t, xml, "[Image failed")
	assert.Contains(t, xml, "Everything else survives")
}

func TestCreateDeckWithDataURLImage(t *testing.T) {
	ts := newTestStack(t)
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t, 4, 4))

	w := ts.postJSON(t, "/pptx/create", map[string]any{
		"title": "Inline Assets",
		"slides": []map[string]any{{
			"heading": "Embedded",
			"images":  []map[string]any{{"url": dataURL}},
		}},
	})
	resp := decodeDeckResponse(t, w)

	dl := ts.get(t, "/files/"+resp.FileName)
	require.Equal(t, http.StatusOK, dl.Code)
	assert.True(t, hasMediaEntry(unzip(t, dl.Body.Bytes())), "data URL image embedded without network I/O")
}

func TestCreateDeckValidationErrors(t *testing.T) {
	ts := newTestStack(t)

	tests := []struct {
		name    string
		body    map[string]any
		wantErr string
	}{
		{
			name:    "missing title",
			body:    map[string]any{"slides": []map[string]any{{"heading": "A"}}},
			wantErr: "title: is required",
		},
		{
			name:    "no slides",
			body:    map[string]any{"title": "T"},
			wantErr: "slides",
		},
		{
			name:    "bad image url",
			body:    map[string]any{"title": "T", "slides": []map[string]any{{"heading": "A", "images": []map[string]any{{"url": "ftp://example.com/a.png"}}}}},
			wantErr: "must be a valid http(s) or data URL",
		},
		{
			name:    "xlsx without tables",
			body:    map[string]any{"title": "T", "formats": []string{"xlsx"}, "slides": []map[string]any{{"heading": "A"}}},
			wantErr: "xlsx output requires",
		},
		{
			name:    "unknown format",
			body:    map[string]any{"title": "T", "formats": []string{"odp"}, "slides": []map[string]any{{"heading": "A"}}},
			wantErr: "must be one of",
		},
		{
			name:    "unknown theme",
			body:    map[string]any{"title": "T", "theme": "neon", "slides": []map[string]any{{"heading": "A"}}},
			wantErr: "valid themes",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.postJSON(t, "/pptx/create", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, errorBody(t, w), tt.wantErr)
		})
	}
}

func TestCreateDeckMalformedJSON(t *testing.T) {
	ts := newTestStack(t)

	w := ts.postRaw(t, "/pptx/create", `{"title": "broken"`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorBody(t, w), "invalid request body")
}

func TestCreateDeckMultipleFormats(t *testing.T) {
	ts := newTestStack(t)

	w := ts.postJSON(t, "/pptx/create", map[string]any{
		"title":   "Full Export",
		"formats": []string{"pdf", "docx", "xlsx"},
		"slides": []map[string]any{{
			"heading": "Results",
			"bullets": []string{"All four formats"},
			"table": map[string]any{
				"columns": []string{"Region", "Total"},
				"rows":    [][]string{{"EMEA", "120"}, {"APAC", "95"}},
			},
		}},
	})
	resp := decodeDeckResponse(t, w)

	require.Len(t, resp.Files, 4)
	formats := make([]string, 0, len(resp.Files))
	for _, f := range resp.Files {
		formats = append(formats, f.Format)
	}
	assert.Equal(t, []string{"pptx", "pdf", "docx", "xlsx"}, formats, "presentation always first")
	assert.Equal(t, resp.Files[0].FileName, resp.FileName)

	signatures := map[string]string{
		"pptx": "PK",
		"pdf":  "%PDF",
		"docx": "PK",
		"xlsx": "PK",
	}
	for _, f := range resp.Files {
		dl := ts.get(t, "/files/"+f.FileName)
		require.Equal(t, http.StatusOK, dl.Code, f.Format)
		assert.Equal(t, mediaTypes[f.Format], dl.Header().Get("Content-Type"), f.Format)
		assert.True(t, bytes.HasPrefix(dl.Body.Bytes(), []byte(signatures[f.Format])), f.Format)
	}
}

func TestDownloadUnknownFileReturns404(t *testing.T) {
	ts := newTestStack(t)

	w := ts.get(t, "/files/doesnotexist.pptx")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error": "File not found"}`, w.Body.String())
}

func TestDownloadCountsRecorded(t *testing.T) {
	ts := newTestStack(t)

	w := ts.postJSON(t, "/pptx/create", map[string]any{
		"title":  "Counted",
		"slides": []map[string]any{{"heading": "Once"}},
	})
	resp := decodeDeckResponse(t, w)

	for i := 0; i < 2; i++ {
		dl := ts.get(t, "/files/"+resp.FileName)
		require.Equal(t, http.StatusOK, dl.Code)
	}

	file, err := ts.fileService.GetFileByName(resp.FileName)
	require.NoError(t, err)
	assert.Equal(t, int64(2), file.Downloads)
}

func TestThemesEndpointListsPalettes(t *testing.T) {
	ts := newTestStack(t)

	w := ts.get(t, "/themes")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Themes []export.Theme `json:"themes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.GreaterOrEqual(t, len(body.Themes), 3)

	names := make([]string, 0, len(body.Themes))
	for _, theme := range body.Themes {
		names = append(names, theme.Name)
		assert.Regexp(t, `^[0-9A-F]{8}$`, theme.Accent, theme.Name)
	}
	assert.Contains(t, names, "default")
	assert.Contains(t, names, "midnight")
	assert.Contains(t, names, "sunrise")
}

func TestCreateFromURLBuildsDeckFromPage(t *testing.T) {
	ts := newTestStack(t)

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<html><head><title>Field Notes</title></head><body>
			<h2>Observations</h2>
			<p>Soil moisture is up this week.</p>
			<ul><li>North plot recovering</li></ul>
			<h2>Next Steps</h2>
			<p>Rotate sensors to the east field.</p>
		</body></html>`)
	}))
	t.Cleanup(page.Close)

	w := ts.postJSON(t, "/pptx/from-url", map[string]any{"url": page.URL, "max_sections": 5})
	resp := decodeDeckResponse(t, w)
	assert.Regexp(t, `^[0-9a-f]{32}\.pptx$`, resp.FileName)

	dl := ts.get(t, "/files/"+resp.FileName)
	require.Equal(t, http.StatusOK, dl.Code)

	entries := unzip(t, dl.Body.Bytes())
	assert.Equal(t, 3, countSlideEntries(entries), "title slide plus two extracted sections")
	xml := allSlideXML(entries)
	assert.Contains(t, xml, "Field Notes")
	assert.Contains(t, xml, "Observations")
	assert.Contains(t, xml, "North plot recovering")
}

func TestCreateFromURLErrors(t *testing.T) {
	ts := newTestStack(t)

	t.Run("invalid url", func(t *testing.T) {
		w := ts.postJSON(t, "/pptx/from-url", map[string]any{"url": "notaurl"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, errorBody(t, w), "url")
	})

	t.Run("unreachable page", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		pageURL := srv.URL
		srv.Close()

		w := ts.postJSON(t, "/pptx/from-url", map[string]any{"url": pageURL})
		require.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, errorBody(t, w), "failed to import page")
	})

	t.Run("page without content", func(t *testing.T) {
		empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, "<html><body></body></html>")
		}))
		t.Cleanup(empty.Close)

		w := ts.postJSON(t, "/pptx/from-url", map[string]any{"url": empty.URL})
		require.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, errorBody(t, w), "no usable content")
	})
}

func TestMetricsEndpointServesExposition(t *testing.T) {
	ts := newTestStack(t)

	w := ts.get(t, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# HELP")
}
