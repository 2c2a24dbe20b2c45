package index

import "github.com/wonny/indexmodel/internal/contracts"

// Errors returned by the engine. Compare with errors.Is.
var (
	ErrInvalidRange             = contracts.ErrInvalidRange
	ErrInsufficientHistory      = contracts.ErrInsufficientHistory
	ErrMissingPriceData         = contracts.ErrMissingPriceData
	ErrInsufficientConstituents = contracts.ErrInsufficientConstituents
)
