package server

import (
	"net/http"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)

	// Stocks
	mux.HandleFunc("/api/tickers", s.handleTickers)
	mux.HandleFunc("/api/stocks/", s.routeStocks)

	// Admin
	mux.HandleFunc("/api/admin/cache", s.handleAdminCache)
}

// routeStocks dispatches /api/stocks/{ticker}/{artifact} to the
// appropriate handler.
func (s *Server) routeStocks(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/stocks/")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required in path")
		return
	}

	parts := strings.SplitN(path, "/", 2)
	ticker := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch subpath {
	case "scorecard":
		s.handleScorecard(w, r, ticker)
	case "fundamental":
		s.handleFundamental(w, r, ticker)
	case "technical":
		s.handleTechnical(w, r, ticker)
	case "earnings":
		s.handleEarnings(w, r, ticker)
	case "macro-risk":
		s.handleMacroRisk(w, r, ticker)
	case "overview":
		s.handleOverview(w, r, ticker)
	case "history":
		s.handleHistory(w, r, ticker)
	case "news":
		s.handleNews(w, r, ticker)
	case "record":
		s.handleRecord(w, r, ticker)
	case "profile":
		s.handleIngestProfile(w, r, ticker)
	case "fundamentals":
		s.handleIngestFundamentals(w, r, ticker)
	case "filings":
		s.handleIngestFilings(w, r, ticker)
	case "bars":
		s.handleIngestBars(w, r, ticker)
	case "snapshots":
		s.handleSnapshots(w, r, ticker)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleConfig reports the effective runtime configuration with secrets
// masked.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	cfg := s.app.Config

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":             cfg.Environment,
		"storage_path":            cfg.Storage.Path,
		"import_dir":              cfg.Storage.ImportDir,
		"logging_level":           cfg.Logging.Level,
		"fundamental_weight":      cfg.Scoring.FundamentalWeight,
		"technical_weight":        cfg.Scoring.TechnicalWeight,
		"fiscal_year_start_month": cfg.Scoring.FiscalYearStartMonth,
		"gemini_model":            cfg.Clients.Gemini.Model,
		"gemini_api_key":          maskSecret(cfg.Clients.Gemini.APIKey),
		"gemini_configured":       s.app.Narrative != nil,
	})
}
