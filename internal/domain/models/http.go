package models

// Read-API request shapes. Bound and validated in the HTTP layer; no
// transport concerns leak into the core.

// LevelsRequest asks for the active levels of one instrument.
type LevelsRequest struct {
	Symbol string `query:"symbol" validate:"required,max=10"`
}

// BreakoutsRequest asks for breakouts of one instrument since a point in
// time. Since accepts RFC3339 or unix seconds; empty means last 24 hours.
type BreakoutsRequest struct {
	Symbol string `query:"symbol" validate:"required,max=10"`
	Since  string `query:"since"`
}

// SignalsRequest asks for the active signals of one instrument.
type SignalsRequest struct {
	Symbol string `query:"symbol" validate:"required,max=10"`
}

// LatestRequest asks for the most recent candles of one instrument.
type LatestRequest struct {
	Symbol    string `query:"symbol" validate:"required,max=10"`
	Timeframe string `query:"timeframe" default:"M1" validate:"omitempty,oneof=M1 M5 M30"`
	Limit     int    `query:"limit" default:"100" validate:"omitempty,min=1,max=500"`
}

// SessionRequest asks for the session state of one instrument.
type SessionRequest struct {
	Symbol string `query:"symbol" validate:"required,max=10"`
}
