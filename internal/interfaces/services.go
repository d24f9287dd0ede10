// Package interfaces defines service contracts for Tally
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// ResearchService is the aggregation surface exposed to the API and MCP
// layers. Every operation computes from stored provider data through the
// cache; the scorers themselves hold no state between calls.
type ResearchService interface {
	// GetScorecard builds the composite scorecard for a ticker: fundamental
	// score blended with multi-timeframe technical consensus, override rules
	// applied, swing-trade assessment attached.
	GetScorecard(ctx context.Context, ticker string) (*models.Scorecard, error)

	// GetFundamentalAnalysis scores valuation, growth, health, and
	// profitability. Returns models.ErrTickerNotFound for unknown tickers
	// and a nil analysis for ETFs, which are scored technically only.
	GetFundamentalAnalysis(ctx context.Context, ticker string) (*models.FundamentalAnalysis, error)

	// GetTechnicalAnalysis scores one timeframe of price history.
	GetTechnicalAnalysis(ctx context.Context, ticker string, timeframe models.Timeframe) (*models.TechnicalAnalysis, error)

	// GetEarnings returns up to eight de-accumulated quarters, newest first.
	GetEarnings(ctx context.Context, ticker string) (*models.EarningsSummary, error)

	// GetMacroRisk returns the AI macro-risk narrative for a ticker. When
	// the narrative client is unconfigured or failing the error wraps
	// models.ErrNarrativeUnavailable and is cached briefly so retries
	// stay cheap.
	GetMacroRisk(ctx context.Context, ticker string) (*models.MacroRiskAssessment, error)

	// GetCompanyOverview returns the profile plus headline analysis state.
	GetCompanyOverview(ctx context.Context, ticker string) (*models.CompanyOverview, error)

	// GetPriceHistory returns the stored OHLCV series, oldest first.
	GetPriceHistory(ctx context.Context, ticker string, timeframe models.Timeframe) ([]models.Bar, error)

	// GetNews returns stored news items, newest first.
	GetNews(ctx context.Context, ticker string) ([]models.NewsItem, error)

	// ListTickers returns all tickers with stored records.
	ListTickers(ctx context.Context) ([]string, error)

	// ListSnapshots returns recent scorecard snapshots, newest first.
	ListSnapshots(ctx context.Context, ticker string, limit int) ([]*models.ScorecardSnapshot, error)

	// IngestRecord merges an already-parsed provider record into storage
	// and invalidates cached artifacts for the ticker.
	IngestRecord(ctx context.Context, record *models.CompanyRecord) error
}

// CacheStats summarizes cache activity for the admin surface.
type CacheStats struct {
	Entries     int   `json:"entries"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Coalesced   int64 `json:"coalesced"`
	ErrorsSaved int64 `json:"errors_cached"`
}

// Cache memoizes computed artifacts per key with per-entry TTLs.
// Entries are replaced on recomputation, never mutated in place, so a
// value handed to one caller is safe to read while another recomputes.
type Cache interface {
	// GetOrCompute returns the cached value for key, or runs fn exactly
	// once across concurrent callers and caches the result. A failed
	// computation is cached for errTTL (skipped when errTTL is zero) so
	// transient upstream failures do not hammer the source.
	GetOrCompute(ctx context.Context, key string, ttl, errTTL time.Duration, fn func(ctx context.Context) (any, error)) (any, error)

	// Get returns a live cached value without computing.
	Get(key string) (any, bool)

	// Invalidate drops a single entry.
	Invalidate(key string)

	// InvalidatePrefix drops every entry whose key starts with prefix and
	// returns the number removed.
	InvalidatePrefix(prefix string) int

	// Stats reports hit/miss counters and current entry count.
	Stats() CacheStats

	// Close stops the expiry janitor.
	Close()
}
