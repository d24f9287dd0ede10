package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

type companyStore struct {
	store  *Store
	logger *common.Logger
}

// NewCompanyStore creates a CompanyStore backed by BadgerHold.
func NewCompanyStore(store *Store, logger *common.Logger) *companyStore {
	return &companyStore{store: store, logger: logger}
}

func (s *companyStore) GetCompany(_ context.Context, ticker string) (*models.CompanyRecord, error) {
	var record models.CompanyRecord
	err := s.store.db.Get(ticker, &record)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.ErrTickerNotFound
		}
		return nil, fmt.Errorf("failed to get company '%s': %w", ticker, err)
	}
	return &record, nil
}

// SaveCompany merges the record into any existing one, so a partial
// ingest never wipes previously loaded sections.
func (s *companyStore) SaveCompany(_ context.Context, record *models.CompanyRecord) error {
	if record == nil || record.Ticker == "" {
		return fmt.Errorf("company record requires a ticker")
	}

	var existing models.CompanyRecord
	err := s.store.db.Get(record.Ticker, &existing)
	if err == nil {
		existing.Merge(record)
		record = &existing
	} else {
		now := time.Now().UTC()
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		record.UpdatedAt = now
	}

	if err := s.store.db.Upsert(record.Ticker, record); err != nil {
		return fmt.Errorf("failed to save company '%s': %w", record.Ticker, err)
	}
	s.logger.Debug().Str("ticker", record.Ticker).Msg("Company record saved")
	return nil
}

func (s *companyStore) DeleteCompany(_ context.Context, ticker string) error {
	err := s.store.db.Delete(ticker, models.CompanyRecord{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete company '%s': %w", ticker, err)
	}
	s.logger.Debug().Str("ticker", ticker).Msg("Company record deleted")
	return nil
}

func (s *companyStore) ListTickers(_ context.Context) ([]string, error) {
	var records []models.CompanyRecord
	if err := s.store.db.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	tickers := make([]string, len(records))
	for i, r := range records {
		tickers[i] = r.Ticker
	}
	sort.Strings(tickers)
	return tickers, nil
}
