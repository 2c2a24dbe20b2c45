package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/vicanso/go-charts/v2"

	"github.com/wonny/indexmodel/internal/contracts"
)

// ChartWriter renders levels as a PNG line chart
type ChartWriter struct {
	out   io.Writer
	title string
}

var _ contracts.LevelSink = (*ChartWriter)(nil)

// NewChartWriter creates a PNG chart sink on w
func NewChartWriter(w io.Writer, title string) *ChartWriter {
	return &ChartWriter{out: w, title: title}
}

// WriteLevels renders one line with date labels on the x axis
func (w *ChartWriter) WriteLevels(series contracts.Series) error {
	if len(series) < 2 {
		return errors.New("chart needs at least two levels")
	}

	labels := make([]string, len(series))
	values := series.Values()
	yMin, yMax := values[0], values[0]
	for i, l := range series {
		labels[i] = l.Date.Format(DateLayout)
		if values[i] < yMin {
			yMin = values[i]
		}
		if values[i] > yMax {
			yMax = values[i]
		}
	}

	pad := (yMax - yMin) * 0.05
	if pad < yMax*0.002 {
		pad = yMax * 0.002
	}
	yMin -= pad
	yMax += pad

	painter, err := charts.LineRender([][]float64{values},
		charts.TitleTextOptionFunc(w.title),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: 10}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	img, err := painter.Bytes()
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}

	_, err = w.out.Write(img)
	return err
}
