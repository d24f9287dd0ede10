package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/app"
	"github.com/bobmcallan/tally/internal/cache"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	storeprovider "github.com/bobmcallan/tally/internal/providers/store"
	"github.com/bobmcallan/tally/internal/services/research"
	"github.com/bobmcallan/tally/internal/storage"
)

// newTestServer assembles a Server over a temp-dir store. No Gemini
// client is wired, so macro-risk endpoints report unavailability.
func newTestServer(t *testing.T) (*Server, *app.App) {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Clients.Gemini.APIKey = "supersecret"

	logger := common.NewSilentLogger()
	manager, err := storage.NewManager(logger, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	memory := cache.NewMemory(logger, time.Minute)
	t.Cleanup(func() { memory.Close() })

	provider := storeprovider.NewProvider(manager.Companies())
	researchService := research.NewService(logger, cfg.Scoring, provider, manager, memory, nil)

	a := &app.App{
		Config:   cfg,
		Logger:   logger,
		Storage:  manager,
		Cache:    memory,
		Provider: provider,
		Research: researchService,
		MCPServer: mcpserver.NewMCPServer(
			"tally-test",
			"test",
			mcpserver.WithToolCapabilities(true),
		),
		StartupTime: time.Now(),
	}

	return NewServer(a), a
}

func doRequest(t *testing.T, srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func ingest(t *testing.T, a *app.App, record *models.CompanyRecord) {
	t.Helper()
	require.NoError(t, a.Research.IngestRecord(context.Background(), record))
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestVersionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["version"])
}

func TestConfigEndpointMasksSecret(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/config", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "supe****", body["gemini_api_key"])
	assert.Equal(t, false, body["gemini_configured"])
}

func TestTickersEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/tickers", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["count"])
}

func TestRecordPutThenGet(t *testing.T) {
	srv, _ := newTestServer(t)

	record := models.CompanyRecord{
		Profile: &models.CompanyProfile{Ticker: "BHP", Name: "BHP Group", Sector: "Materials"},
	}
	payload, err := json.Marshal(record)
	require.NoError(t, err)

	rec := doRequest(t, srv, http.MethodPut, "/api/stocks/BHP/record", payload)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ingested", body["status"])
	assert.Equal(t, "BHP", body["ticker"])

	rec = doRequest(t, srv, http.MethodGet, "/api/stocks/BHP/record", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BHP", decodeBody(t, rec)["ticker"])
}

func TestRecordPutInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/stocks/BHP/record", []byte("{broken"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScorecardUnknownTicker(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/stocks/NOPE/scorecard", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody(t, rec)["code"])
}

func TestTechnicalBadTimeframe(t *testing.T) {
	srv, a := newTestServer(t)
	ingest(t, a, &models.CompanyRecord{
		Profile: &models.CompanyProfile{Ticker: "BHP", Name: "BHP Group"},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/stocks/BHP/technical?timeframe=monthly", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_timeframe", decodeBody(t, rec)["code"])
}

func TestTechnicalInsufficientHistory(t *testing.T) {
	srv, a := newTestServer(t)
	ingest(t, a, &models.CompanyRecord{
		Profile: &models.CompanyProfile{Ticker: "BHP", Name: "BHP Group"},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/stocks/BHP/technical", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_history", decodeBody(t, rec)["code"])
}

func TestFundamentalETFNotApplicable(t *testing.T) {
	srv, a := newTestServer(t)
	ingest(t, a, &models.CompanyRecord{
		Profile: &models.CompanyProfile{Ticker: "VAS", Name: "Vanguard Australian Shares", IsETF: true},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/stocks/VAS/fundamental", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_applicable", decodeBody(t, rec)["code"])
}

func TestMacroRiskUnavailableWithoutClient(t *testing.T) {
	srv, a := newTestServer(t)
	ingest(t, a, &models.CompanyRecord{
		Profile: &models.CompanyProfile{Ticker: "BHP", Name: "BHP Group"},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/stocks/BHP/macro-risk", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "narrative_unavailable", decodeBody(t, rec)["code"])
}

func TestSnapshotsEmpty(t *testing.T) {
	srv, a := newTestServer(t)
	ingest(t, a, &models.CompanyRecord{
		Profile: &models.CompanyProfile{Ticker: "BHP", Name: "BHP Group"},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/stocks/BHP/snapshots", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["count"])
}

func TestUnknownStockSubpath(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/stocks/BHP/bogus", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodDelete, "/api/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Header().Get("Allow"), http.MethodGet)
}

func TestAdminCachePurge(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/admin/cache", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodDelete, "/api/admin/cache", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "purged", decodeBody(t, rec)["status"])
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodOptions, "/api/tickers", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorrelationIDPropagated(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc123", rec.Header().Get("X-Correlation-ID"))
}

func TestComponentIngestEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	profile, err := json.Marshal(models.CompanyProfile{Ticker: "BHP", Name: "BHP Group", Sector: "Materials"})
	require.NoError(t, err)
	rec := doRequest(t, srv, http.MethodPost, "/api/stocks/BHP/profile", profile)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "profile", decodeBody(t, rec)["section"])

	bars, err := json.Marshal([]models.Bar{
		{Time: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), Close: 42, Volume: 1000},
		{Time: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), Close: 43, Volume: 1100},
	})
	require.NoError(t, err)
	rec = doRequest(t, srv, http.MethodPost, "/api/stocks/BHP/bars?timeframe=daily", bars)
	assert.Equal(t, http.StatusOK, rec.Code)

	news, err := json.Marshal([]models.NewsItem{
		{Title: "Iron ore rallies", URL: "https://example.com/a", PublishedAt: time.Now().UTC()},
	})
	require.NoError(t, err)
	rec = doRequest(t, srv, http.MethodPost, "/api/stocks/BHP/news", news)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Partial ingests merge rather than replace.
	rec = doRequest(t, srv, http.MethodGet, "/api/stocks/BHP/history", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["count"])

	rec = doRequest(t, srv, http.MethodGet, "/api/stocks/BHP/news", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	rec = doRequest(t, srv, http.MethodGet, "/api/stocks/BHP/overview", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngestBarsBadTimeframe(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/stocks/BHP/bars?timeframe=monthly", []byte("[]"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_timeframe", decodeBody(t, rec)["code"])
}

func TestHistoryEndpoint(t *testing.T) {
	srv, a := newTestServer(t)

	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, 5)
	for i := range bars {
		price := 100.0 + float64(i)
		bars[i] = models.Bar{
			Time:   base.AddDate(0, 0, i),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price + 0.5,
			Volume: 1_000_000,
		}
	}
	ingest(t, a, &models.CompanyRecord{
		Profile: &models.CompanyProfile{Ticker: "BHP", Name: "BHP Group"},
		Bars:    map[models.Timeframe][]models.Bar{models.TimeframeDaily: bars},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/stocks/BHP/history", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(5), body["count"])
	assert.Equal(t, "daily", body["timeframe"])
}
