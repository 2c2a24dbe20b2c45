package index

import (
	"math"
	"time"

	"github.com/wonny/indexmodel/internal/contracts"
)

// Summary holds performance metrics of a level series
type Summary struct {
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	Days         int       `json:"days"`
	StartLevel   float64   `json:"start_level"`
	EndLevel     float64   `json:"end_level"`
	TotalReturn  float64   `json:"total_return"`
	CAGR         float64   `json:"cagr"`
	Volatility   float64   `json:"volatility"` // annualized
	SharpeRatio  float64   `json:"sharpe_ratio"`
	SortinoRatio float64   `json:"sortino_ratio"`
	MaxDrawdown  float64   `json:"max_drawdown"`
}

// tradingDaysPerYear annualizes daily volatility
const tradingDaysPerYear = 252

// Summarize calculates performance metrics from a level series.
// Ratios assume a 0% risk-free rate.
func Summarize(series contracts.Series) Summary {
	first, ok := firstLevel(series)
	if !ok {
		return Summary{}
	}
	last, _ := series.Last()

	s := Summary{
		From:       first.Date,
		To:         last.Date,
		Days:       len(series),
		StartLevel: first.Value,
		EndLevel:   last.Value,
	}
	s.TotalReturn = last.Value/first.Value - 1

	years := last.Date.Sub(first.Date).Hours() / 24 / 365.25
	if years > 0 {
		s.CAGR = math.Pow(last.Value/first.Value, 1/years) - 1
	}

	returns := dailyReturns(series)
	s.Volatility = stddev(returns) * math.Sqrt(tradingDaysPerYear)
	if s.Volatility > 0 {
		s.SharpeRatio = s.CAGR / s.Volatility
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if dd := stddev(downside) * math.Sqrt(tradingDaysPerYear); dd > 0 {
		s.SortinoRatio = s.CAGR / dd
	}

	s.MaxDrawdown = maxDrawdown(series)
	return s
}

func firstLevel(series contracts.Series) (contracts.Level, bool) {
	if len(series) == 0 {
		return contracts.Level{}, false
	}
	return series[0], true
}

// dailyReturns are returns between consecutive recorded levels
func dailyReturns(series contracts.Series) []float64 {
	if len(series) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		returns = append(returns, series[i].Value/series[i-1].Value-1)
	}
	return returns
}

// stddev is the population standard deviation
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}

func maxDrawdown(series contracts.Series) float64 {
	if len(series) == 0 {
		return 0
	}

	worst := 0.0
	peak := series[0].Value
	for _, l := range series {
		if l.Value > peak {
			peak = l.Value
		}
		if dd := (peak - l.Value) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}
