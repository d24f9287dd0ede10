package research

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/cache"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	storeprovider "github.com/bobmcallan/tally/internal/providers/store"
	"github.com/bobmcallan/tally/internal/storage"
)

type harness struct {
	service *Service
	cache   *cache.Memory
	storage *storage.Manager
}

func newHarness(t *testing.T, narrative *fakeNarrative) *harness {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()

	logger := common.NewSilentLogger()
	manager, err := storage.NewManager(logger, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	memory := cache.NewMemory(logger, time.Minute)
	t.Cleanup(memory.Close)

	provider := storeprovider.NewProvider(manager.Companies())

	// Assign through the interface only for a live fake; a typed nil
	// would defeat the service's nil-client check.
	var client interfaces.NarrativeClient
	if narrative != nil {
		client = narrative
	}
	svc := NewService(logger, cfg.Scoring, provider, manager, memory, client)
	return &harness{service: svc, cache: memory, storage: manager}
}

type fakeNarrative struct {
	calls int
	err   error
}

func (f *fakeNarrative) AssessMacroRisk(ctx context.Context, input *models.MacroRiskInput) (*models.MacroRiskAssessment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.MacroRiskAssessment{
		Ticker:      input.Profile.Ticker,
		Tailwinds:   []models.MacroFactor{},
		Headwinds:   []models.MacroFactor{},
		Summary:     "Calm conditions.",
		ModelUsed:   f.Model(),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeNarrative) Model() string { return "fake-model" }
func (f *fakeNarrative) Close() error  { return nil }

func fp(v float64) *float64 { return &v }

// trendBars builds a drifting daily series long enough for every
// indicator.
func trendBars(n int, start, step float64) []models.Bar {
	bars := make([]models.Bar, n)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price := start + float64(i)*step
		wiggle := math.Sin(float64(i)*0.7) * start * 0.004
		c := price + wiggle
		o := price - wiggle
		hi := math.Max(o, c) * 1.005
		lo := math.Min(o, c) * 0.995
		bars[i] = models.Bar{
			Time:   t0.Add(time.Duration(i) * 24 * time.Hour),
			Open:   o,
			High:   hi,
			Low:    lo,
			Close:  c,
			Volume: int64(1_000_000 + (i%7)*50_000),
		}
	}
	return bars
}

func seededRecord() *models.CompanyRecord {
	return &models.CompanyRecord{
		Ticker: "TQNT",
		Profile: &models.CompanyProfile{
			Ticker: "TQNT",
			Name:   "Taliquant",
			Sector: "Technology",
			Price:  fp(100),
		},
		Fundamentals: &models.RawFundamentals{
			Ticker:           "TQNT",
			PERatio:          fp(22),
			PriceToBook:      fp(5),
			PriceToSales:     fp(4.5),
			RevenueGrowth:    fp(0.18),
			EarningsGrowth:   fp(0.22),
			DebtToEquity:     fp(0.45),
			CurrentRatio:     fp(2.1),
			ProfitMargins:    fp(0.21),
			OperatingMargins: fp(0.27),
			GrossMargins:     fp(0.66),
		},
		Bars: map[models.Timeframe][]models.Bar{
			models.TimeframeDaily: trendBars(250, 100, 0.2),
		},
		News: []models.NewsItem{
			{Title: "Old story", PublishedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
			{Title: "Fresh story", PublishedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func TestGetScorecardBuildsAndSnapshots(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.service.IngestRecord(ctx, seededRecord()))

	card, err := h.service.GetScorecard(ctx, "TQNT")
	require.NoError(t, err)
	assert.Equal(t, "TQNT", card.Ticker)
	assert.NotEmpty(t, card.Grade)
	assert.NotEmpty(t, card.Signal)
	require.NotNil(t, card.Fundamental)
	require.NotNil(t, card.TechnicalDaily)
	assert.InDelta(t, 1.0, card.ScoreBreakdown.FundamentalWeight+card.ScoreBreakdown.TechnicalWeight, 1e-9)
	assert.Nil(t, card.ScoreBreakdown.TechnicalWeeklyScore, "no weekly bars were ingested")

	snaps, err := h.service.ListSnapshots(ctx, "TQNT", 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, card.OverallScore, snaps[0].OverallScore)

	again, err := h.service.GetScorecard(ctx, "TQNT")
	require.NoError(t, err)
	assert.Equal(t, card.GeneratedAt, again.GeneratedAt, "second read is served from cache")
	snaps, err = h.service.ListSnapshots(ctx, "TQNT", 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1, "cached reads do not append snapshots")
}

func TestGetScorecardUnknownTicker(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.service.GetScorecard(context.Background(), "NOPE")
	assert.ErrorIs(t, err, models.ErrTickerNotFound)
}

func TestGetFundamentalAnalysisETF(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.service.IngestRecord(ctx, &models.CompanyRecord{
		Ticker:  "VAS",
		Profile: &models.CompanyProfile{Ticker: "VAS", Name: "Broad Index ETF", IsETF: true},
		Bars: map[models.Timeframe][]models.Bar{
			models.TimeframeDaily: trendBars(250, 90, 0.1),
		},
	}))

	analysis, err := h.service.GetFundamentalAnalysis(ctx, "VAS")
	require.NoError(t, err)
	assert.Nil(t, analysis, "ETFs are scored technically only")

	card, err := h.service.GetScorecard(ctx, "VAS")
	require.NoError(t, err)
	assert.Nil(t, card.Fundamental)
	assert.Equal(t, 0.0, card.ScoreBreakdown.FundamentalWeight)
	assert.Equal(t, 1.0, card.ScoreBreakdown.TechnicalWeight)
}

func TestGetFundamentalAnalysisMissingFundamentals(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.service.IngestRecord(ctx, &models.CompanyRecord{
		Ticker:  "BARE",
		Profile: &models.CompanyProfile{Ticker: "BARE", Name: "Bare Co", Sector: "Energy"},
	}))

	analysis, err := h.service.GetFundamentalAnalysis(ctx, "BARE")
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, 0.0, analysis.Confidence, "every metric is a gap")
	assert.NotEmpty(t, analysis.DataGaps)
}

func TestFundamentalAnalysisDerivesQuartersFromFilings(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	record := seededRecord()
	record.Filings = cumulativeFilings()
	require.NoError(t, h.service.IngestRecord(ctx, record))

	analysis, err := h.service.GetFundamentalAnalysis(ctx, "TQNT")
	require.NoError(t, err)
	require.NotNil(t, analysis.Growth)
	qoq, ok := analysis.Growth.Metrics["revenue_qoq"]
	require.True(t, ok)
	assert.NotNil(t, qoq.Value, "QoQ momentum scores from de-accumulated filings")
}

func TestGetTechnicalAnalysis(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.service.IngestRecord(ctx, seededRecord()))

	analysis, err := h.service.GetTechnicalAnalysis(ctx, "TQNT", models.TimeframeDaily)
	require.NoError(t, err)
	assert.Equal(t, "TQNT", analysis.Ticker)

	_, err = h.service.GetTechnicalAnalysis(ctx, "TQNT", models.TimeframeWeekly)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory, "no weekly bars were ingested")

	_, err = h.service.GetTechnicalAnalysis(ctx, "TQNT", "monthly")
	assert.Error(t, err, "unsupported timeframe is rejected")
}

func TestGetEarnings(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	record := &models.CompanyRecord{
		Ticker:  "TQNT",
		Profile: &models.CompanyProfile{Ticker: "TQNT", Name: "Taliquant"},
		Filings: cumulativeFilings(),
	}
	require.NoError(t, h.service.IngestRecord(ctx, record))

	summary, err := h.service.GetEarnings(ctx, "TQNT")
	require.NoError(t, err)
	require.Len(t, summary.Quarters, 3)

	// Newest first: Q3 170, Q2 150, Q1 100 after de-accumulation.
	assert.Equal(t, "Q3 2025", summary.Quarters[0].Label)
	assert.Equal(t, 170.0, *summary.Quarters[0].Revenue)
	assert.Equal(t, 150.0, *summary.Quarters[1].Revenue)
	assert.Equal(t, 100.0, *summary.Quarters[2].Revenue)

	require.NotNil(t, summary.Quarters[0].RevenueQoQ)
	assert.InDelta(t, (170.0-150.0)/150.0*100, *summary.Quarters[0].RevenueQoQ, 1e-9)
	assert.Nil(t, summary.Quarters[2].RevenueQoQ, "oldest quarter has no predecessor")
	assert.Nil(t, summary.Quarters[0].RevenueYoY, "no year-ago quarter in a single year of filings")

	require.NotNil(t, summary.Quarters[0].OperatingMargin)
	assert.InDelta(t, 34.0/170.0*100, *summary.Quarters[0].OperatingMargin, 1e-9)
}

// cumulativeFilings builds three YTD filings of one fiscal year:
// revenue 100, 250, 420 reported cumulatively, operating income at 20%.
func cumulativeFilings() []models.RawFiling {
	q := func(startMonth, endMonth time.Month, revenue float64) models.RawFiling {
		start := time.Date(2025, startMonth, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2025, endMonth, 30, 0, 0, 0, 0, time.UTC)
		op := revenue * 0.2
		ni := revenue * 0.12
		return models.RawFiling{
			PeriodStart:     start,
			PeriodEnd:       end,
			Revenue:         &revenue,
			OperatingIncome: &op,
			NetIncome:       &ni,
		}
	}
	return []models.RawFiling{
		q(time.January, time.March, 100),
		q(time.January, time.June, 250),
		q(time.January, time.September, 420),
	}
}

func TestGetMacroRiskWithoutClient(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.service.IngestRecord(ctx, seededRecord()))

	_, err := h.service.GetMacroRisk(ctx, "TQNT")
	assert.ErrorIs(t, err, models.ErrNarrativeUnavailable)
}

func TestGetMacroRiskCachesAssessment(t *testing.T) {
	narrative := &fakeNarrative{}
	h := newHarness(t, narrative)
	ctx := context.Background()
	require.NoError(t, h.service.IngestRecord(ctx, seededRecord()))

	assessment, err := h.service.GetMacroRisk(ctx, "TQNT")
	require.NoError(t, err)
	assert.Equal(t, "TQNT", assessment.Ticker)
	assert.Equal(t, "Calm conditions.", assessment.Summary)

	_, err = h.service.GetMacroRisk(ctx, "TQNT")
	require.NoError(t, err)
	assert.Equal(t, 1, narrative.calls, "second read is served from cache")
}

func TestGetNewsNewestFirst(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.service.IngestRecord(ctx, seededRecord()))

	news, err := h.service.GetNews(ctx, "TQNT")
	require.NoError(t, err)
	require.Len(t, news, 2)
	assert.Equal(t, "Fresh story", news[0].Title)
}

func TestGetPriceHistoryOldestFirst(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	record := seededRecord()
	// Ingest bars shuffled; the service restores chronological order.
	bars := record.Bars[models.TimeframeDaily]
	bars[0], bars[10] = bars[10], bars[0]
	require.NoError(t, h.service.IngestRecord(ctx, record))

	history, err := h.service.GetPriceHistory(ctx, "TQNT", models.TimeframeDaily)
	require.NoError(t, err)
	require.Len(t, history, 250)
	for i := 1; i < len(history); i++ {
		require.True(t, history[i].Time.After(history[i-1].Time))
	}
}

func TestGetCompanyOverview(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.service.IngestRecord(ctx, seededRecord()))

	overview, err := h.service.GetCompanyOverview(ctx, "TQNT")
	require.NoError(t, err)
	require.NotNil(t, overview.Profile)
	assert.Equal(t, "Taliquant", overview.Profile.Name)
	assert.Equal(t, 2, overview.NewsCount)
	assert.Equal(t, 250, overview.BarCounts[models.TimeframeDaily])
	assert.Equal(t, 22.0, overview.KeyMetrics["pe_ratio"])
	assert.True(t, overview.FundamentalsFresh, "record was ingested moments ago")
	assert.Nil(t, overview.LatestSnap, "no scorecard has been generated yet")
}

func TestIngestInvalidatesCachedArtifacts(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.service.IngestRecord(ctx, seededRecord()))

	_, err := h.service.GetScorecard(ctx, "TQNT")
	require.NoError(t, err)
	_, ok := h.cache.Get("scorecard:TQNT")
	require.True(t, ok)

	require.NoError(t, h.service.IngestRecord(ctx, seededRecord()))
	_, ok = h.cache.Get("scorecard:TQNT")
	assert.False(t, ok, "re-ingesting a ticker drops its cached artifacts")
}

func TestIngestRecordTickerFromProfile(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	// Provider payloads may carry the ticker on the profile only.
	record := seededRecord()
	record.Ticker = ""
	record.Profile.Ticker = "tqnt"
	require.NoError(t, h.service.IngestRecord(ctx, record))

	tickers, err := h.service.ListTickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"TQNT"}, tickers, "profile ticker is adopted and normalized")

	err = h.service.IngestRecord(ctx, &models.CompanyRecord{})
	assert.Error(t, err, "a record with no ticker anywhere is rejected")
}

func TestListTickers(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.service.IngestRecord(ctx, seededRecord()))
	require.NoError(t, h.service.IngestRecord(ctx, &models.CompanyRecord{Ticker: "apx"}))

	tickers, err := h.service.ListTickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"APX", "TQNT"}, tickers, "tickers are normalized and sorted")
}
