package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/wonny/indexmodel/internal/contracts"
)

// DateLayout is the DD/MM/YYYY layout of exported dates
const DateLayout = "02/01/2006"

// CSVHeader is the header row of the CSV export
var CSVHeader = []string{"Date", "index_level"}

// CSVWriter writes levels as two-column CSV
type CSVWriter struct {
	out io.Writer
}

var _ contracts.LevelSink = (*CSVWriter)(nil)

// NewCSVWriter creates a CSV sink on w
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{out: w}
}

// WriteLevels writes the header and one row per level.
// Values keep full precision.
func (w *CSVWriter) WriteLevels(series contracts.Series) error {
	cw := csv.NewWriter(w.out)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, l := range series {
		if err := cw.Write([]string{l.Date.Format(DateLayout), FormatLevel(l.Value)}); err != nil {
			return fmt.Errorf("write csv row %s: %w", l.Date.Format(DateLayout), err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FormatLevel renders v with the fewest digits that parse back to v
func FormatLevel(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
