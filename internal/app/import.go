package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobmcallan/tally/internal/models"
)

// ImportRecords loads every *.json company record in dir and ingests it.
// Files that fail to parse or ingest are logged and skipped so one bad
// record does not block the rest of the batch.
func (a *App) ImportRecords(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			a.Logger.Debug().Str("dir", dir).Msg("Import directory does not exist, skipping")
			return nil
		}
		return fmt.Errorf("failed to read import dir: %w", err)
	}

	imported := 0
	failed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := a.importRecordFile(ctx, path); err != nil {
			a.Logger.Warn().Err(err).Str("file", entry.Name()).Msg("Record import failed")
			failed++
			continue
		}
		imported++
	}

	if imported > 0 || failed > 0 {
		a.Logger.Info().
			Str("dir", dir).
			Int("imported", imported).
			Int("failed", failed).
			Msg("Record import complete")
	}
	return nil
}

func (a *App) importRecordFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	var record models.CompanyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	// Fall back to the filename for records that omit the ticker.
	if record.Ticker == "" {
		base := filepath.Base(path)
		record.Ticker = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if err := a.Research.IngestRecord(ctx, &record); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	return nil
}
