package sentinel

import "errors"

var (
	// ErrInsufficientData is returned by the statistics kernel when an
	// operation is undefined for the given sample size.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNoHistoricalData signals an empty price or bidding window.
	ErrNoHistoricalData = errors.New("no historical data")
	ErrInvalidScope     = errors.New("invalid scope")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrNotFound         = errors.New("not found")
	ErrInvalidDocument  = errors.New("invalid document")
)
