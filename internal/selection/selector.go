package selection

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/contracts"
	"github.com/wonny/indexmodel/pkg/logger"
)

// RankedTicker is a ticker's position in a price ranking
type RankedTicker struct {
	Rank   int     `json:"rank"`
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
}

// Selector picks index constituents by price rank
// ⭐ SSOT: constituent selection happens here only
type Selector struct {
	provider contracts.PriceProvider
	logger   *logger.Logger
}

// NewSelector creates a new selector
func NewSelector(provider contracts.PriceProvider, log *logger.Logger) *Selector {
	return &Selector{
		provider: provider,
		logger:   log,
	}
}

// Rank orders every ticker priced on asOf by price, highest first.
// Equal prices are ordered by ticker symbol ascending.
func (s *Selector) Rank(asOf time.Time) ([]RankedTicker, error) {
	quotes, ok := s.provider.Snapshot(asOf)
	if !ok {
		return nil, fmt.Errorf("%w: no snapshot for %s", contracts.ErrMissingPriceData, asOf.Format(calendar.DateLayout))
	}
	return RankByPrice(quotes), nil
}

// SelectTop returns the n highest priced tickers on asOf, in rank order
func (s *Selector) SelectTop(asOf time.Time, n int) ([]string, error) {
	ranked, err := s.Rank(asOf)
	if err != nil {
		return nil, err
	}
	if len(ranked) < n {
		return nil, fmt.Errorf("%w: %d priced tickers on %s, need %d",
			contracts.ErrInsufficientConstituents, len(ranked), asOf.Format(calendar.DateLayout), n)
	}

	top := make([]string, n)
	for i := range top {
		top[i] = ranked[i].Ticker
	}

	s.logger.WithFields(map[string]interface{}{
		"as_of":        asOf.Format(calendar.DateLayout),
		"candidates":   len(ranked),
		"constituents": top,
	}).Debug("Constituents selected")

	return top, nil
}

// RankByPrice sorts a copy of quotes by price descending, ticker ascending
func RankByPrice(quotes []contracts.Quote) []RankedTicker {
	sorted := make([]contracts.Quote, len(quotes))
	copy(sorted, quotes)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price > sorted[j].Price
		}
		return sorted[i].Ticker < sorted[j].Ticker
	})

	ranked := make([]RankedTicker, len(sorted))
	for i, q := range sorted {
		ranked[i] = RankedTicker{Rank: i + 1, Ticker: q.Ticker, Price: q.Price}
	}
	return ranked
}
