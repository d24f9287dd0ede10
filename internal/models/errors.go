package models

import "errors"

// Sentinel errors surfaced across the service boundary. Missing metrics
// and indicators are never errors; they degrade to data gaps. These cover
// the conditions that genuinely prevent producing an artifact.
var (
	// ErrTickerNotFound means the ticker resolves to no stored company.
	ErrTickerNotFound = errors.New("ticker not found")

	// ErrInsufficientHistory means a price series is too short for any
	// technical indicator on the requested timeframe.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrNarrativeUnavailable means the AI narrative collaborator is not
	// configured or failed; callers receive a structured payload with a
	// short cache TTL rather than a fatal scorecard error.
	ErrNarrativeUnavailable = errors.New("narrative provider unavailable")
)
