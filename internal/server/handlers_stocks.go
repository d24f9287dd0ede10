package server

import (
	"net/http"
	"strconv"

	"github.com/bobmcallan/tally/internal/models"
)

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	tickers, err := s.app.Research.ListTickers(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tickers": tickers,
		"count":   len(tickers),
	})
}

func (s *Server) handleScorecard(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	card, err := s.app.Research.GetScorecard(r.Context(), ticker)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, card)
}

func (s *Server) handleFundamental(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	analysis, err := s.app.Research.GetFundamentalAnalysis(r.Context(), ticker)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if analysis == nil {
		// ETFs carry no fundamental analysis.
		WriteErrorWithCode(w, http.StatusNotFound, "no fundamental analysis for this ticker", "not_applicable")
		return
	}
	WriteJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleTechnical(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	timeframe := TimeframeParam(r)
	if !timeframe.Valid() {
		WriteErrorWithCode(w, http.StatusBadRequest, "unsupported timeframe: "+string(timeframe), "bad_timeframe")
		return
	}
	analysis, err := s.app.Research.GetTechnicalAnalysis(r.Context(), ticker, timeframe)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	summary, err := s.app.Research.GetEarnings(r.Context(), ticker)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

func (s *Server) handleMacroRisk(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	assessment, err := s.app.Research.GetMacroRisk(r.Context(), ticker)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, assessment)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	overview, err := s.app.Research.GetCompanyOverview(r.Context(), ticker)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, overview)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	timeframe := TimeframeParam(r)
	if !timeframe.Valid() {
		WriteErrorWithCode(w, http.StatusBadRequest, "unsupported timeframe: "+string(timeframe), "bad_timeframe")
		return
	}
	bars, err := s.app.Research.GetPriceHistory(r.Context(), ticker, timeframe)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":    ticker,
		"timeframe": timeframe,
		"bars":      bars,
		"count":     len(bars),
	})
}

// handleNews serves stored news (GET) and ingests a news batch (POST).
func (s *Server) handleNews(w http.ResponseWriter, r *http.Request, ticker string) {
	switch r.Method {
	case http.MethodGet:
		news, err := s.app.Research.GetNews(r.Context(), ticker)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ticker": ticker,
			"news":   news,
			"count":  len(news),
		})
	case http.MethodPost:
		var news []models.NewsItem
		if !DecodeJSON(w, r, &news) {
			return
		}
		s.ingestSection(w, r, "news", &models.CompanyRecord{Ticker: ticker, News: news})
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// Component ingest endpoints accept one section of a record each. They
// merge through the same path as full record PUTs.

func (s *Server) handleIngestProfile(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var profile models.CompanyProfile
	if !DecodeJSON(w, r, &profile) {
		return
	}
	s.ingestSection(w, r, "profile", &models.CompanyRecord{Ticker: ticker, Profile: &profile})
}

func (s *Server) handleIngestFundamentals(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var fundamentals models.RawFundamentals
	if !DecodeJSON(w, r, &fundamentals) {
		return
	}
	s.ingestSection(w, r, "fundamentals", &models.CompanyRecord{Ticker: ticker, Fundamentals: &fundamentals})
}

func (s *Server) handleIngestFilings(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var filings []models.RawFiling
	if !DecodeJSON(w, r, &filings) {
		return
	}
	s.ingestSection(w, r, "filings", &models.CompanyRecord{Ticker: ticker, Filings: filings})
}

func (s *Server) handleIngestBars(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	timeframe := TimeframeParam(r)
	if !timeframe.Valid() {
		WriteErrorWithCode(w, http.StatusBadRequest, "unsupported timeframe: "+string(timeframe), "bad_timeframe")
		return
	}
	var bars []models.Bar
	if !DecodeJSON(w, r, &bars) {
		return
	}
	s.ingestSection(w, r, "bars", &models.CompanyRecord{
		Ticker: ticker,
		Bars:   map[models.Timeframe][]models.Bar{timeframe: bars},
	})
}

func (s *Server) ingestSection(w http.ResponseWriter, r *http.Request, section string, record *models.CompanyRecord) {
	if err := s.app.Research.IngestRecord(r.Context(), record); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ingested",
		"section": section,
		"ticker":  record.Ticker,
	})
}

// handleRecord serves the stored company record (GET) and ingests a new
// or partial record (PUT).
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request, ticker string) {
	switch r.Method {
	case http.MethodGet:
		record, err := s.app.Storage.Companies().GetCompany(r.Context(), ticker)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, record)
	case http.MethodPut:
		var record models.CompanyRecord
		if !DecodeJSON(w, r, &record) {
			return
		}
		if record.Ticker == "" {
			record.Ticker = ticker
		}
		if err := s.app.Research.IngestRecord(r.Context(), &record); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ingested",
			"ticker": record.Ticker,
		})
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut)
	}
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	snaps, err := s.app.Research.ListSnapshots(r.Context(), ticker, limit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":    ticker,
		"snapshots": snaps,
		"count":     len(snaps),
	})
}
