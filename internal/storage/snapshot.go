package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// defaultSnapshotLimit caps history reads when the caller passes no limit.
const defaultSnapshotLimit = 20

type snapshotStore struct {
	store  *Store
	logger *common.Logger
}

// NewSnapshotStore creates a SnapshotStore backed by BadgerHold.
func NewSnapshotStore(store *Store, logger *common.Logger) *snapshotStore {
	return &snapshotStore{store: store, logger: logger}
}

func (s *snapshotStore) SaveSnapshot(_ context.Context, snap *models.ScorecardSnapshot) error {
	if snap == nil || snap.Ticker == "" {
		return fmt.Errorf("snapshot requires a ticker")
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	if err := s.store.db.Insert(snap.ID, snap); err != nil {
		return fmt.Errorf("failed to save snapshot for '%s': %w", snap.Ticker, err)
	}
	s.logger.Debug().Str("ticker", snap.Ticker).Str("id", snap.ID).Msg("Scorecard snapshot saved")
	return nil
}

func (s *snapshotStore) ListSnapshots(_ context.Context, ticker string, limit int) ([]*models.ScorecardSnapshot, error) {
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}

	var snaps []models.ScorecardSnapshot
	query := badgerhold.Where("Ticker").Eq(ticker).Index("Ticker")
	if err := s.store.db.Find(&snaps, query); err != nil {
		return nil, fmt.Errorf("failed to list snapshots for '%s': %w", ticker, err)
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	if len(snaps) > limit {
		snaps = snaps[:limit]
	}

	out := make([]*models.ScorecardSnapshot, len(snaps))
	for i := range snaps {
		out[i] = &snaps[i]
	}
	return out, nil
}
