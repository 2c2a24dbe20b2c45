package contracts

import "time"

// Quote is one ticker's price in a daily snapshot
type Quote struct {
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
}

// PriceProvider exposes historical prices to the index engine
// ⭐ SSOT: the engine reads prices through this interface only
type PriceProvider interface {
	// PriceAt returns the price of ticker on date; ok is false when there is none
	PriceAt(ticker string, date time.Time) (price float64, ok bool)

	// Snapshot returns every priced ticker on date; ok is false when the date has no row
	Snapshot(date time.Time) (quotes []Quote, ok bool)

	// Range returns the first and last dates with prices
	Range() (first, last time.Time)
}

// Level is the index value on one business day
type Level struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is an ordered (by date, strictly increasing) sequence of index levels
type Series []Level

// Between returns the levels with from <= date <= to
func (s Series) Between(from, to time.Time) Series {
	out := make(Series, 0, len(s))
	for _, l := range s {
		if l.Date.Before(from) || l.Date.After(to) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Last returns the latest level; ok is false for an empty series
func (s Series) Last() (Level, bool) {
	if len(s) == 0 {
		return Level{}, false
	}
	return s[len(s)-1], true
}

// Values returns the level values in date order
func (s Series) Values() []float64 {
	values := make([]float64, len(s))
	for i, l := range s {
		values[i] = l.Value
	}
	return values
}

// LevelSink receives a finished level series
type LevelSink interface {
	WriteLevels(series Series) error
}

// Rebalance records one constituent re-selection
type Rebalance struct {
	Date         time.Time `json:"date"`         // day the new constituents take effect
	AsOf         time.Time `json:"as_of"`        // price snapshot used for ranking
	Constituents []string  `json:"constituents"` // ordered, paired positionally with weights
	BaseLevel    float64   `json:"base_level"`   // level the new epoch accumulates from
}
