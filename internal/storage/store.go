// Package storage provides the embedded BadgerHold persistence layer.
package storage

import (
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/tally/internal/common"
)

// gcInterval is how often the value-log garbage collector runs. Badger
// never reclaims value-log space on its own.
const gcInterval = 10 * time.Minute

// Store wraps a BadgerHold database connection.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
	stopGC chan struct{}
	doneGC chan struct{}
}

// NewStore creates a new BadgerHold store at the given directory path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Options = badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1)

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("BadgerHold store opened")

	s := &Store{
		db:     db,
		logger: logger,
		stopGC: make(chan struct{}),
		doneGC: make(chan struct{}),
	}
	go s.runValueLogGC()

	return s, nil
}

// runValueLogGC periodically reclaims value-log space. One GC call
// rewrites at most one log file, so keep calling until it reports
// nothing left to collect.
func (s *Store) runValueLogGC() {
	defer close(s.doneGC)
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			for {
				err := s.db.Badger().RunValueLogGC(0.5)
				if err != nil {
					if err != badger.ErrNoRewrite {
						s.logger.Warn().Err(err).Msg("Badger value-log GC failed")
					}
					break
				}
			}
		}
	}
}

// DB returns the underlying badgerhold store.
func (s *Store) DB() *badgerhold.Store {
	return s.db
}

// Close stops the GC loop and closes the BadgerHold database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
		s.stopGC = nil
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
