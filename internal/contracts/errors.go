package contracts

import "errors"

// Index computation errors. All are fatal to the call that returns them;
// a missing daily price is not an error (the day is skipped).
var (
	// ErrInvalidRange: requested start date is after the end date
	ErrInvalidRange = errors.New("invalid range")

	// ErrInsufficientHistory: requested range is outside the available price history
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrMissingPriceData: a rebalance as-of date has no price snapshot
	ErrMissingPriceData = errors.New("missing price data")

	// ErrInsufficientConstituents: a snapshot prices fewer tickers than the index holds
	ErrInsufficientConstituents = errors.New("insufficient constituents")
)
