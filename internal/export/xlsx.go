package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/wonny/indexmodel/internal/contracts"
)

// SheetName is the worksheet the XLSX export writes to
const SheetName = "Index"

// XLSXWriter writes levels to a single-sheet workbook
type XLSXWriter struct {
	out io.Writer
}

var _ contracts.LevelSink = (*XLSXWriter)(nil)

// NewXLSXWriter creates an XLSX sink on w
func NewXLSXWriter(w io.Writer) *XLSXWriter {
	return &XLSXWriter{out: w}
}

// WriteLevels writes the same two columns as the CSV export.
// Dates are text cells in DD/MM/YYYY, levels are numeric cells.
func (w *XLSXWriter) WriteLevels(series contracts.Series) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(CSVHeader))
	for i, h := range CSVHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, l := range series {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{l.Date.Format(DateLayout), l.Value}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w.out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
