package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	m, err := NewManager(common.NewDefaultLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestSystemKVRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.System().SetSystemKV(ctx, "gemini_api_key", "secret"))
	v, err := m.System().GetSystemKV(ctx, "gemini_api_key")
	require.NoError(t, err)
	assert.Equal(t, "secret", v)

	require.NoError(t, m.System().DeleteSystemKV(ctx, "gemini_api_key"))
	_, err = m.System().GetSystemKV(ctx, "gemini_api_key")
	assert.Error(t, err)

	assert.NoError(t, m.System().DeleteSystemKV(ctx, "never-set"), "deleting a missing key is not an error")
}

func TestCompanyStoreRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Companies().GetCompany(ctx, "TQNT")
	assert.ErrorIs(t, err, models.ErrTickerNotFound)

	price := 42.5
	record := &models.CompanyRecord{
		Ticker:  "TQNT",
		Profile: &models.CompanyProfile{Ticker: "TQNT", Name: "Taliquant", Price: &price},
	}
	require.NoError(t, m.Companies().SaveCompany(ctx, record))

	got, err := m.Companies().GetCompany(ctx, "TQNT")
	require.NoError(t, err)
	assert.Equal(t, "Taliquant", got.Profile.Name)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, m.Companies().DeleteCompany(ctx, "TQNT"))
	_, err = m.Companies().GetCompany(ctx, "TQNT")
	assert.ErrorIs(t, err, models.ErrTickerNotFound)
}

func TestSaveCompanyMergesPartialIngests(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Companies().SaveCompany(ctx, &models.CompanyRecord{
		Ticker:  "TQNT",
		Profile: &models.CompanyProfile{Ticker: "TQNT", Name: "Taliquant"},
	}))

	// A bars-only push must not wipe the profile.
	require.NoError(t, m.Companies().SaveCompany(ctx, &models.CompanyRecord{
		Ticker: "TQNT",
		Bars: map[models.Timeframe][]models.Bar{
			models.TimeframeDaily: {{Time: time.Now(), Close: 10}},
		},
	}))

	got, err := m.Companies().GetCompany(ctx, "TQNT")
	require.NoError(t, err)
	require.NotNil(t, got.Profile)
	assert.Equal(t, "Taliquant", got.Profile.Name)
	assert.Len(t, got.Bars[models.TimeframeDaily], 1)
}

func TestListTickersSorted(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, ticker := range []string{"ZIP", "APX", "MQG"} {
		require.NoError(t, m.Companies().SaveCompany(ctx, &models.CompanyRecord{Ticker: ticker}))
	}

	tickers, err := m.Companies().ListTickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"APX", "MQG", "ZIP"}, tickers)
}

func TestSnapshotHistory(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Snapshots().SaveSnapshot(ctx, &models.ScorecardSnapshot{
			Ticker:       "TQNT",
			OverallScore: float64(60 + i),
			Grade:        "B",
			Signal:       models.SignalBuy,
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, m.Snapshots().SaveSnapshot(ctx, &models.ScorecardSnapshot{
		Ticker:       "OTHER",
		OverallScore: 40,
		CreatedAt:    base,
	}))

	snaps, err := m.Snapshots().ListSnapshots(ctx, "TQNT", 3)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, 64.0, snaps[0].OverallScore, "newest first")
	assert.Equal(t, 63.0, snaps[1].OverallScore)
	for _, s := range snaps {
		assert.Equal(t, "TQNT", s.Ticker)
		assert.NotEmpty(t, s.ID, "IDs are assigned on save")
	}

	all, err := m.Snapshots().ListSnapshots(ctx, "TQNT", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5, "zero limit falls back to the default cap")
}
