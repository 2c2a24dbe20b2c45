package prices

import (
	"encoding/json"
	"fmt"

	"github.com/wonny/indexmodel/internal/calendar"
)

type tableJSON struct {
	Tickers []string  `json:"tickers"`
	Rows    []rowJSON `json:"rows"`
}

type rowJSON struct {
	Date   string             `json:"date"`
	Prices map[string]float64 `json:"prices"`
}

// MarshalJSON encodes the table with rows in date order
func (t *Table) MarshalJSON() ([]byte, error) {
	out := tableJSON{Tickers: t.tickers, Rows: make([]rowJSON, 0, len(t.dates))}
	for _, d := range t.dates {
		out.Rows = append(out.Rows, rowJSON{Date: d.Format(calendar.DateLayout), Prices: t.rows[d]})
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a table produced by MarshalJSON
func (t *Table) UnmarshalJSON(data []byte) error {
	var in tableJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	b := NewBuilder()
	b.Declare(in.Tickers...)
	for _, row := range in.Rows {
		d, err := calendar.ParseDate(row.Date)
		if err != nil {
			return fmt.Errorf("decode price row: %w", err)
		}
		for ticker, price := range row.Prices {
			b.Add(d, ticker, price)
		}
	}

	built, err := b.Build()
	if err != nil {
		return err
	}
	*t = *built
	return nil
}
