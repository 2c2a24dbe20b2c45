package prices

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSVDateLayout is the DD/MM/YYYY layout of the price and level files
const CSVDateLayout = "02/01/2006"

// LoadCSVFile reads a price table from path
func LoadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()

	table, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// LoadCSV reads a "Date,<ticker>,<ticker>,..." table. Dates are DD/MM/YYYY;
// blank cells are missing prices.
func LoadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "date") {
		return nil, fmt.Errorf("header must start with Date followed by tickers, got %v", header)
	}

	tickers := make([]string, len(header)-1)
	for i, h := range header[1:] {
		tickers[i] = strings.TrimSpace(h)
	}

	b := NewBuilder()
	b.Declare(tickers...)

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := time.Parse(CSVDateLayout, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q: %w", line, record[0], err)
		}

		for i, cell := range record[1:] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			price, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid price %q for %s: %w", line, cell, tickers[i], err)
			}
			b.Add(date, tickers[i], price)
		}
	}

	return b.Build()
}
