package storage

import (
	"fmt"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
)

// Manager implements interfaces.StorageManager over one embedded
// BadgerHold database shared by the typed stores.
type Manager struct {
	store     *Store
	system    *systemStore
	companies *companyStore
	snapshots *snapshotStore
	dataPath  string
	logger    *common.Logger
}

var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager opens the embedded store and wires the typed surfaces.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	store, err := NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	logger.Info().Str("path", config.Storage.Path).Msg("Storage manager initialized")

	return &Manager{
		store:     store,
		system:    NewSystemStore(store, logger),
		companies: NewCompanyStore(store, logger),
		snapshots: NewSnapshotStore(store, logger),
		dataPath:  config.Storage.Path,
		logger:    logger,
	}, nil
}

func (m *Manager) System() interfaces.SystemStore {
	return m.system
}

func (m *Manager) Companies() interfaces.CompanyStore {
	return m.companies
}

func (m *Manager) Snapshots() interfaces.SnapshotStore {
	return m.snapshots
}

func (m *Manager) DataPath() string {
	return m.dataPath
}

func (m *Manager) Close() error {
	return m.store.Close()
}
