// Package common provides shared utilities for Tally
package common

import "time"

// Freshness TTLs for computed and ingested artifacts
const (
	FreshnessPriceMarketHours = 15 * time.Minute
	FreshnessPriceClosed      = 24 * time.Hour
	FreshnessFundamentals     = 24 * time.Hour // company profile + financial statements
	FreshnessNews             = 1 * time.Hour
	FreshnessAnalysis         = 30 * time.Minute // scorecard, fundamental, technical, earnings artifacts
	FreshnessMacro            = 6 * time.Hour
	FreshnessMacroError       = 5 * time.Minute // short so a transient upstream failure retries quickly
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}

// IsMarketHours reports whether t falls inside the US regular session,
// approximated as 14:00-21:00 UTC on weekdays.
func IsMarketHours(t time.Time) bool {
	utc := t.UTC()
	switch utc.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return utc.Hour() >= 14 && utc.Hour() < 21
}

// PriceTTL returns the price freshness window for the given time:
// short while the market is open, a day otherwise.
func PriceTTL(t time.Time) time.Duration {
	if IsMarketHours(t) {
		return FreshnessPriceMarketHours
	}
	return FreshnessPriceClosed
}
