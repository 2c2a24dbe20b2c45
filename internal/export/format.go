package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wonny/indexmodel/internal/contracts"
)

// Format names an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPNG  Format = "png"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q (csv, xlsx, png)", s)
	}
}

// FormatFromPath infers the format from a file extension, defaulting to CSV
func FormatFromPath(path string) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return FormatCSV
	}
	return f
}

// NewSink returns the level sink for format writing to w
func NewSink(format Format, w io.Writer, title string) (contracts.LevelSink, error) {
	switch format {
	case FormatCSV:
		return NewCSVWriter(w), nil
	case FormatXLSX:
		return NewXLSXWriter(w), nil
	case FormatPNG:
		return NewChartWriter(w, title), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// WriteFile writes series to path in format, replacing any existing file
func WriteFile(path string, format Format, title string, series contracts.Series) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	sink, err := NewSink(format, f, title)
	if err != nil {
		return err
	}
	return sink.WriteLevels(series)
}
