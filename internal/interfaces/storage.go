package interfaces

import (
	"context"

	"github.com/bobmcallan/tally/internal/models"
)

// StorageManager coordinates the embedded store's typed surfaces.
type StorageManager interface {
	System() SystemStore
	Companies() CompanyStore
	Snapshots() SnapshotStore

	// DataPath returns the base data directory path.
	DataPath() string

	Close() error
}

// SystemStore holds system-level key-value settings such as API keys.
type SystemStore interface {
	GetSystemKV(ctx context.Context, key string) (string, error)
	SetSystemKV(ctx context.Context, key, value string) error
	DeleteSystemKV(ctx context.Context, key string) error
}

// CompanyStore persists ingested per-ticker records.
type CompanyStore interface {
	GetCompany(ctx context.Context, ticker string) (*models.CompanyRecord, error)
	SaveCompany(ctx context.Context, record *models.CompanyRecord) error
	DeleteCompany(ctx context.Context, ticker string) error
	ListTickers(ctx context.Context) ([]string, error)
}

// SnapshotStore keeps the append-only history of generated scorecards.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *models.ScorecardSnapshot) error
	ListSnapshots(ctx context.Context, ticker string, limit int) ([]*models.ScorecardSnapshot, error)
}
