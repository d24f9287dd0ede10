// Package research aggregates stored provider data into scored analysis
// artifacts: scorecards, fundamental and technical analyses, earnings
// tables, and the AI macro-risk narrative.
package research

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/tally/internal/cache"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/scoring"
)

// cacheKeyKinds are the key families the service writes, one prefix per
// artifact kind. Ingestion invalidates every family for the ticker.
var cacheKeyKinds = []string{"scorecard", "fundamental", "analysis", "earnings", "macro", "overview", "history", "news"}

// Service implements interfaces.ResearchService. All reads flow through
// the cache; the scorers are stateless so every artifact is rebuilt from
// stored provider data when its cache entry expires.
type Service struct {
	provider  interfaces.DataProvider
	storage   interfaces.StorageManager
	cache     interfaces.Cache
	narrative interfaces.NarrativeClient

	fundamental   *scoring.FundamentalScorer
	technical     *scoring.TechnicalScorer
	deaccumulator *scoring.Deaccumulator
	engine        *scoring.Engine

	logger *common.Logger
}

var _ interfaces.ResearchService = (*Service)(nil)

// NewService wires the research service. The narrative client may be nil,
// in which case macro-risk requests report the narrative as unavailable.
func NewService(logger *common.Logger, cfg common.ScoringConfig, provider interfaces.DataProvider, storage interfaces.StorageManager, cacheLayer interfaces.Cache, narrative interfaces.NarrativeClient) *Service {
	return &Service{
		provider:      provider,
		storage:       storage,
		cache:         cacheLayer,
		narrative:     narrative,
		fundamental:   scoring.NewFundamentalScorer(),
		technical:     scoring.NewTechnicalScorer(),
		deaccumulator: scoring.NewDeaccumulator(cfg.FiscalYearStartMonth),
		engine:        scoring.NewEngine(cfg),
		logger:        logger,
	}
}

// GetScorecard builds the composite scorecard: fundamental score blended
// with the multi-timeframe technical consensus, override rule applied,
// swing-trade assessment attached. Each computed scorecard is also
// persisted as a snapshot for the history trail.
func (s *Service) GetScorecard(ctx context.Context, ticker string) (*models.Scorecard, error) {
	ticker = normalizeTicker(ticker)
	return cache.Typed[*models.Scorecard](s.cache.GetOrCompute(ctx, "scorecard:"+ticker, common.FreshnessAnalysis, 0, func(ctx context.Context) (any, error) {
		fundamental, err := s.GetFundamentalAnalysis(ctx, ticker)
		if err != nil {
			return nil, err
		}

		daily, err := s.timeframeAnalysis(ctx, ticker, models.TimeframeDaily)
		if err != nil {
			return nil, err
		}
		weekly, err := s.timeframeAnalysis(ctx, ticker, models.TimeframeWeekly)
		if err != nil {
			return nil, err
		}
		hourly, err := s.timeframeAnalysis(ctx, ticker, models.TimeframeHourly)
		if err != nil {
			return nil, err
		}

		card, err := s.engine.Build(ticker, fundamental, daily, weekly, hourly)
		if err != nil {
			return nil, err
		}
		s.persistSnapshot(ctx, card)
		return card, nil
	}))
}

// timeframeAnalysis fetches one timeframe's analysis, treating a series
// too short to score as an absent input rather than a failure.
func (s *Service) timeframeAnalysis(ctx context.Context, ticker string, timeframe models.Timeframe) (*models.TechnicalAnalysis, error) {
	analysis, err := s.GetTechnicalAnalysis(ctx, ticker, timeframe)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientHistory) {
			return nil, nil
		}
		return nil, err
	}
	return analysis, nil
}

func (s *Service) persistSnapshot(ctx context.Context, card *models.Scorecard) {
	snap := &models.ScorecardSnapshot{
		Ticker:          card.Ticker,
		OverallScore:    card.OverallScore,
		Grade:           card.Grade,
		Signal:          card.Signal,
		Confidence:      card.Confidence,
		OverrideApplied: card.OverrideApplied,
		CreatedAt:       card.GeneratedAt,
	}
	if err := s.storage.Snapshots().SaveSnapshot(ctx, snap); err != nil {
		s.logger.Warn().Err(err).Str("ticker", card.Ticker).Msg("Failed to persist scorecard snapshot")
	}
}

// GetFundamentalAnalysis scores valuation, growth, health, and
// profitability for a ticker. ETFs return a nil analysis; they are
// scored technically only. A missing fundamentals record still scores,
// with every metric recorded as a data gap.
func (s *Service) GetFundamentalAnalysis(ctx context.Context, ticker string) (*models.FundamentalAnalysis, error) {
	ticker = normalizeTicker(ticker)
	return cache.Typed[*models.FundamentalAnalysis](s.cache.GetOrCompute(ctx, "fundamental:"+ticker, common.FreshnessAnalysis, 0, func(ctx context.Context) (any, error) {
		profile, err := s.provider.GetProfile(ctx, ticker)
		if err != nil {
			return nil, err
		}
		if profile.Classify() == models.ClassificationETF {
			return (*models.FundamentalAnalysis)(nil), nil
		}

		fundamentals, err := s.provider.GetFundamentals(ctx, ticker)
		if err != nil {
			return nil, err
		}
		if fundamentals == nil {
			fundamentals = &models.RawFundamentals{Ticker: ticker}
		}
		fundamentals = s.withDerivedQuarters(ctx, ticker, fundamentals)

		return s.fundamental.Score(profile, fundamentals), nil
	}))
}

// withDerivedQuarters fills the quarterly income series from
// de-accumulated filings when the merged record carries none, so QoQ
// momentum and margin-trend metrics still score.
func (s *Service) withDerivedQuarters(ctx context.Context, ticker string, f *models.RawFundamentals) *models.RawFundamentals {
	if len(f.Quarterly) > 0 {
		return f
	}
	filings, err := s.provider.GetFilings(ctx, ticker)
	if err != nil || len(filings) == 0 {
		return f
	}

	quarters := s.deaccumulator.Deaccumulate(filings)
	derived := make([]models.QuarterlyFigures, 0, len(quarters))
	for i := len(quarters) - 1; i >= 0; i-- {
		q := quarters[i]
		derived = append(derived, models.QuarterlyFigures{
			PeriodEnd:       q.PeriodEnd,
			Revenue:         q.Revenue,
			NetIncome:       q.NetIncome,
			OperatingIncome: q.OperatingIncome,
		})
	}

	clone := *f
	clone.Quarterly = derived
	return &clone
}

// GetTechnicalAnalysis scores one timeframe of stored price history.
func (s *Service) GetTechnicalAnalysis(ctx context.Context, ticker string, timeframe models.Timeframe) (*models.TechnicalAnalysis, error) {
	ticker = normalizeTicker(ticker)
	if !timeframe.Valid() {
		return nil, fmt.Errorf("invalid timeframe %q", timeframe)
	}
	key := fmt.Sprintf("analysis:%s:%s", ticker, timeframe)
	return cache.Typed[*models.TechnicalAnalysis](s.cache.GetOrCompute(ctx, key, common.FreshnessAnalysis, 0, func(ctx context.Context) (any, error) {
		bars, err := s.provider.GetBars(ctx, ticker, timeframe)
		if err != nil {
			return nil, err
		}
		return s.technical.Score(ticker, bars, timeframe)
	}))
}

// GetMacroRisk returns the AI macro-risk narrative. Failures are cached
// on a short TTL so a broken upstream is retried on its own schedule.
func (s *Service) GetMacroRisk(ctx context.Context, ticker string) (*models.MacroRiskAssessment, error) {
	ticker = normalizeTicker(ticker)
	return cache.Typed[*models.MacroRiskAssessment](s.cache.GetOrCompute(ctx, "macro:"+ticker, common.FreshnessMacro, common.FreshnessMacroError, func(ctx context.Context) (any, error) {
		if s.narrative == nil {
			return nil, fmt.Errorf("%w: narrative client not configured", models.ErrNarrativeUnavailable)
		}

		profile, err := s.provider.GetProfile(ctx, ticker)
		if err != nil {
			return nil, err
		}

		input := &models.MacroRiskInput{Profile: profile}
		if fundamentals, err := s.provider.GetFundamentals(ctx, ticker); err == nil && fundamentals != nil {
			input.KeyMetrics = keyMetrics(fundamentals)
		}
		if news, err := s.provider.GetNews(ctx, ticker); err == nil {
			input.News = newestFirst(news)
		}

		assessment, err := s.narrative.AssessMacroRisk(ctx, input)
		if err != nil {
			return nil, err
		}
		return assessment, nil
	}))
}

// GetCompanyOverview returns the profile plus headline analysis state.
func (s *Service) GetCompanyOverview(ctx context.Context, ticker string) (*models.CompanyOverview, error) {
	ticker = normalizeTicker(ticker)
	return cache.Typed[*models.CompanyOverview](s.cache.GetOrCompute(ctx, "overview:"+ticker, common.PriceTTL(time.Now()), 0, func(ctx context.Context) (any, error) {
		record, err := s.storage.Companies().GetCompany(ctx, ticker)
		if err != nil {
			return nil, err
		}

		overview := &models.CompanyOverview{
			Profile:           record.Profile,
			FilingCount:       len(record.Filings),
			NewsCount:         len(record.News),
			LastIngestion:     record.UpdatedAt,
			FundamentalsFresh: common.IsFresh(record.UpdatedAt, common.FreshnessFundamentals),
		}
		if record.Fundamentals != nil {
			overview.KeyMetrics = keyMetrics(record.Fundamentals)
		}
		if len(record.Bars) > 0 {
			overview.BarCounts = make(map[models.Timeframe]int, len(record.Bars))
			for tf, bars := range record.Bars {
				overview.BarCounts[tf] = len(bars)
			}
		}
		if snaps, err := s.storage.Snapshots().ListSnapshots(ctx, ticker, 1); err == nil && len(snaps) > 0 {
			overview.LatestSnap = snaps[0]
		}
		return overview, nil
	}))
}

// GetPriceHistory returns the stored OHLCV series, oldest first.
func (s *Service) GetPriceHistory(ctx context.Context, ticker string, timeframe models.Timeframe) ([]models.Bar, error) {
	ticker = normalizeTicker(ticker)
	if !timeframe.Valid() {
		return nil, fmt.Errorf("invalid timeframe %q", timeframe)
	}
	key := fmt.Sprintf("history:%s:%s", ticker, timeframe)
	return cache.Typed[[]models.Bar](s.cache.GetOrCompute(ctx, key, common.PriceTTL(time.Now()), 0, func(ctx context.Context) (any, error) {
		bars, err := s.provider.GetBars(ctx, ticker, timeframe)
		if err != nil {
			return nil, err
		}
		return bars, nil
	}))
}

// GetNews returns stored news items, newest first.
func (s *Service) GetNews(ctx context.Context, ticker string) ([]models.NewsItem, error) {
	ticker = normalizeTicker(ticker)
	return cache.Typed[[]models.NewsItem](s.cache.GetOrCompute(ctx, "news:"+ticker, common.FreshnessNews, 0, func(ctx context.Context) (any, error) {
		news, err := s.provider.GetNews(ctx, ticker)
		if err != nil {
			return nil, err
		}
		return newestFirst(news), nil
	}))
}

// ListTickers returns all tickers with stored records.
func (s *Service) ListTickers(ctx context.Context) ([]string, error) {
	return s.storage.Companies().ListTickers(ctx)
}

// ListSnapshots returns recent scorecard snapshots, newest first.
func (s *Service) ListSnapshots(ctx context.Context, ticker string, limit int) ([]*models.ScorecardSnapshot, error) {
	return s.storage.Snapshots().ListSnapshots(ctx, normalizeTicker(ticker), limit)
}

// IngestRecord merges an already-parsed provider record into storage and
// invalidates every cached artifact for the ticker.
func (s *Service) IngestRecord(ctx context.Context, record *models.CompanyRecord) error {
	if record == nil {
		return fmt.Errorf("record has no ticker")
	}
	if strings.TrimSpace(record.Ticker) == "" && record.Profile != nil {
		// Provider payloads often carry the ticker on the profile only.
		record.Ticker = record.Profile.Ticker
	}
	if strings.TrimSpace(record.Ticker) == "" {
		return fmt.Errorf("record has no ticker")
	}
	record.Ticker = normalizeTicker(record.Ticker)
	sortBars(record.Bars)

	if err := s.storage.Companies().SaveCompany(ctx, record); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	removed := 0
	for _, kind := range cacheKeyKinds {
		removed += s.cache.InvalidatePrefix(kind + ":" + record.Ticker)
	}
	s.logger.Info().Str("ticker", record.Ticker).Int("invalidated", removed).Msg("Record ingested")
	return nil
}

// sortBars enforces the chronological order the indicator math needs.
func sortBars(bars map[models.Timeframe][]models.Bar) {
	for _, series := range bars {
		sort.Slice(series, func(i, j int) bool {
			return series[i].Time.Before(series[j].Time)
		})
	}
}

// keyMetrics extracts the handful of ratios carried on overviews and
// macro-risk prompts.
func keyMetrics(f *models.RawFundamentals) map[string]float64 {
	metrics := make(map[string]float64)
	put := func(name string, v *float64) {
		if v != nil {
			metrics[name] = *v
		}
	}
	put("pe_ratio", f.PERatio)
	put("price_to_book", f.PriceToBook)
	put("price_to_sales", f.PriceToSales)
	put("revenue_growth", f.RevenueGrowth)
	put("profit_margin", f.ProfitMargins)
	put("debt_to_equity", f.DebtToEquity)
	if len(metrics) == 0 {
		return nil
	}
	return metrics
}

// newestFirst returns a copy of the news sorted by publication time,
// newest first.
func newestFirst(news []models.NewsItem) []models.NewsItem {
	if len(news) == 0 {
		return news
	}
	sorted := make([]models.NewsItem, len(news))
	copy(sorted, news)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})
	return sorted
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
