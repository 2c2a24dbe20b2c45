package prices

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/contracts"
)

// ErrEmptyTable is returned when a loader produced no priced rows
var ErrEmptyTable = errors.New("price table has no rows")

// Table is an immutable date -> ticker -> price table.
// It implements contracts.PriceProvider.
type Table struct {
	tickers []string // source column order
	dates   []time.Time
	rows    map[time.Time]map[string]float64
}

var _ contracts.PriceProvider = (*Table)(nil)

// Builder accumulates rows for a Table
type Builder struct {
	tickers []string
	seen    map[string]struct{}
	rows    map[time.Time]map[string]float64
}

// NewBuilder creates a Builder
func NewBuilder() *Builder {
	return &Builder{
		seen: make(map[string]struct{}),
		rows: make(map[time.Time]map[string]float64),
	}
}

// Declare fixes ticker column order ahead of the first Add
func (b *Builder) Declare(tickers ...string) {
	for _, ticker := range tickers {
		if _, ok := b.seen[ticker]; !ok {
			b.seen[ticker] = struct{}{}
			b.tickers = append(b.tickers, ticker)
		}
	}
}

// Add records a price. Non-positive prices are ignored and treated as missing.
func (b *Builder) Add(date time.Time, ticker string, price float64) {
	b.Declare(ticker)
	if price <= 0 {
		return
	}

	date = calendar.Normalize(date)
	row, ok := b.rows[date]
	if !ok {
		row = make(map[string]float64)
		b.rows[date] = row
	}
	row[ticker] = price
}

// Build freezes the accumulated rows
func (b *Builder) Build() (*Table, error) {
	if len(b.rows) == 0 {
		return nil, ErrEmptyTable
	}

	dates := make([]time.Time, 0, len(b.rows))
	for d := range b.rows {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	return &Table{
		tickers: append([]string(nil), b.tickers...),
		dates:   dates,
		rows:    b.rows,
	}, nil
}

// PriceAt returns the price of ticker on date
func (t *Table) PriceAt(ticker string, date time.Time) (float64, bool) {
	row, ok := t.rows[calendar.Normalize(date)]
	if !ok {
		return 0, false
	}
	price, ok := row[ticker]
	return price, ok
}

// Snapshot returns the priced tickers on date in source column order
func (t *Table) Snapshot(date time.Time) ([]contracts.Quote, bool) {
	row, ok := t.rows[calendar.Normalize(date)]
	if !ok {
		return nil, false
	}

	quotes := make([]contracts.Quote, 0, len(row))
	for _, ticker := range t.tickers {
		if price, ok := row[ticker]; ok {
			quotes = append(quotes, contracts.Quote{Ticker: ticker, Price: price})
		}
	}
	return quotes, true
}

// Range returns the first and last priced dates
func (t *Table) Range() (time.Time, time.Time) {
	return t.dates[0], t.dates[len(t.dates)-1]
}

// Tickers returns the tickers in source column order
func (t *Table) Tickers() []string {
	return append([]string(nil), t.tickers...)
}

// Dates returns the priced dates, ascending
func (t *Table) Dates() []time.Time {
	return append([]time.Time(nil), t.dates...)
}

// Len returns the number of priced dates
func (t *Table) Len() int {
	return len(t.dates)
}

// Slice returns a new table restricted to [from, to]
func (t *Table) Slice(from, to time.Time) (*Table, error) {
	b := NewBuilder()
	b.Declare(t.tickers...)
	for _, d := range t.dates {
		if d.Before(from) || d.After(to) {
			continue
		}
		for ticker, price := range t.rows[d] {
			b.Add(d, ticker, price)
		}
	}

	table, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("slice %s..%s: %w", from.Format(calendar.DateLayout), to.Format(calendar.DateLayout), err)
	}
	return table, nil
}
