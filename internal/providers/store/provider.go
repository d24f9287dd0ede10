// Package store adapts the company store into the DataProvider surface
// the research service consumes.
package store

import (
	"context"

	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// Provider serves provider data from ingested company records. It is the
// only DataProvider in the engine; ingestion pipelines run out of
// process and push records through the API.
type Provider struct {
	companies interfaces.CompanyStore
}

var _ interfaces.DataProvider = (*Provider)(nil)

// NewProvider creates a record-backed data provider.
func NewProvider(companies interfaces.CompanyStore) *Provider {
	return &Provider{companies: companies}
}

func (p *Provider) GetProfile(ctx context.Context, ticker string) (*models.CompanyProfile, error) {
	record, err := p.companies.GetCompany(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return record.Profile, nil
}

func (p *Provider) GetFundamentals(ctx context.Context, ticker string) (*models.RawFundamentals, error) {
	record, err := p.companies.GetCompany(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return record.Fundamentals, nil
}

func (p *Provider) GetFilings(ctx context.Context, ticker string) ([]models.RawFiling, error) {
	record, err := p.companies.GetCompany(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return record.Filings, nil
}

func (p *Provider) GetBars(ctx context.Context, ticker string, timeframe models.Timeframe) ([]models.Bar, error) {
	record, err := p.companies.GetCompany(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return record.Bars[timeframe], nil
}

func (p *Provider) GetNews(ctx context.Context, ticker string) ([]models.NewsItem, error) {
	record, err := p.companies.GetCompany(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return record.News, nil
}
