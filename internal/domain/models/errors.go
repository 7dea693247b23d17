package models

import "errors"

// Core error taxonomy. Expected business absences (no active session, level
// not found) are never errors; reads return empty results instead.
var (
	// ErrValidation marks input rejected at the ingestion boundary:
	// unsupported symbol or timeframe, non-positive price, malformed OHLC
	// ordering, non-monotonic timestamps. State is never mutated.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate marks a candle with an already-seen
	// (symbol, timeframe, timestamp). Skipped, not fatal.
	ErrDuplicate = errors.New("duplicate candle")

	// ErrGap marks an aggregation window with no input candles. Logged,
	// nothing emitted.
	ErrGap = errors.New("aggregation gap")

	// ErrInvariant marks a condition that must never occur by construction,
	// e.g. two active levels for one (symbol, type, session). The newer
	// attempt is discarded and the condition is surfaced as a programming
	// error.
	ErrInvariant = errors.New("invariant violation")

	// ErrUpstream marks a collaborator failure (storage timeout, news lookup).
	// In-memory state is preserved and the operation is retryable.
	ErrUpstream = errors.New("upstream failure")
)
