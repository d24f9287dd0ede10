package interfaces

import (
	"context"

	"github.com/bobmcallan/tally/internal/models"
)

// DataProvider is the collaborator boundary for already-parsed market
// data. The engine never knows which upstream source satisfied a field;
// it only sees the merged record. Implementations return
// models.ErrTickerNotFound when a ticker resolves to no stored company.
type DataProvider interface {
	GetProfile(ctx context.Context, ticker string) (*models.CompanyProfile, error)
	GetFundamentals(ctx context.Context, ticker string) (*models.RawFundamentals, error)
	GetFilings(ctx context.Context, ticker string) ([]models.RawFiling, error)
	GetBars(ctx context.Context, ticker string, timeframe models.Timeframe) ([]models.Bar, error)
	GetNews(ctx context.Context, ticker string) ([]models.NewsItem, error)
}

// NarrativeClient produces the AI macro-risk narrative. Responses are
// validated for schema shape only, never for content. Implementations
// wrap models.ErrNarrativeUnavailable when the upstream model cannot
// answer.
type NarrativeClient interface {
	AssessMacroRisk(ctx context.Context, input *models.MacroRiskInput) (*models.MacroRiskAssessment, error)

	// Model returns the model identifier recorded on assessments.
	Model() string

	Close() error
}
