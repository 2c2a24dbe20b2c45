package prices

import (
	"fmt"
	"time"

	"github.com/wonny/indexmodel/internal/calendar"
)

// QualityConfig holds quality gate thresholds
type QualityConfig struct {
	MinDayCoverage    float64 `yaml:"min_day_coverage"`    // share of business days with any price
	MinTickerCoverage float64 `yaml:"min_ticker_coverage"` // share of business days each ticker is priced
}

// DefaultQualityConfig returns the thresholds used by the compute pipeline
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		MinDayCoverage:    0.95,
		MinTickerCoverage: 0.90,
	}
}

// QualityReport describes how completely a table covers the calendar.
// Gaps never fail a computation; missing days are skipped by the engine.
type QualityReport struct {
	From           time.Time          `json:"from"`
	To             time.Time          `json:"to"`
	BusinessDays   int                `json:"business_days"`
	PricedDays     int                `json:"priced_days"`
	MissingDays    []time.Time        `json:"missing_days,omitempty"`
	OffCalendar    []time.Time        `json:"off_calendar,omitempty"`
	TickerCoverage map[string]float64 `json:"ticker_coverage"`
	QualityScore   float64            `json:"quality_score"`
	Passed         bool               `json:"passed"`
	Issues         []string           `json:"issues,omitempty"`
}

// DayCoverage is the share of business days that have at least one price
func (r QualityReport) DayCoverage() float64 {
	if r.BusinessDays == 0 {
		return 0
	}
	return float64(r.PricedDays) / float64(r.BusinessDays)
}

// QualityGate checks a price table against a business-day calendar
type QualityGate struct {
	calendar *calendar.Calendar
	config   QualityConfig
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(cal *calendar.Calendar, config QualityConfig) *QualityGate {
	return &QualityGate{
		calendar: cal,
		config:   config,
	}
}

// Check measures coverage over the table's own date range
// ⭐ SSOT: price data quality is assessed here only
func (g *QualityGate) Check(t *Table) QualityReport {
	first, last := t.Range()
	report := QualityReport{
		From:           first,
		To:             last,
		TickerCoverage: make(map[string]float64, len(t.tickers)),
	}

	// 1. Business days with and without prices
	priced := make(map[string]int, len(t.tickers))
	for _, d := range g.calendar.BusinessDays(first, last) {
		report.BusinessDays++
		row, ok := t.rows[d]
		if !ok || len(row) == 0 {
			report.MissingDays = append(report.MissingDays, d)
			continue
		}
		report.PricedDays++
		for ticker := range row {
			priced[ticker]++
		}
	}

	// 2. Priced dates the calendar does not trade
	for _, d := range t.dates {
		if !g.calendar.IsBusinessDay(d) {
			report.OffCalendar = append(report.OffCalendar, d)
		}
	}

	// 3. Per-ticker coverage and score
	sum := 0.0
	for _, ticker := range t.tickers {
		cov := 0.0
		if report.BusinessDays > 0 {
			cov = float64(priced[ticker]) / float64(report.BusinessDays)
		}
		report.TickerCoverage[ticker] = cov
		sum += cov
	}
	if len(t.tickers) > 0 {
		report.QualityScore = sum / float64(len(t.tickers))
	}

	report.Issues = g.issues(report, t.tickers)
	report.Passed = len(report.Issues) == 0

	return report
}

func (g *QualityGate) issues(report QualityReport, tickers []string) []string {
	var issues []string

	if cov := report.DayCoverage(); cov < g.config.MinDayCoverage {
		issues = append(issues, fmt.Sprintf("day coverage %.2f%% below %.2f%% (%d of %d business days missing)",
			cov*100, g.config.MinDayCoverage*100, len(report.MissingDays), report.BusinessDays))
	}

	for _, ticker := range tickers {
		if cov := report.TickerCoverage[ticker]; cov < g.config.MinTickerCoverage {
			issues = append(issues, fmt.Sprintf("%s coverage %.2f%% below %.2f%%",
				ticker, cov*100, g.config.MinTickerCoverage*100))
		}
	}

	if n := len(report.OffCalendar); n > 0 {
		issues = append(issues, fmt.Sprintf("%d priced dates are not business days (first %s)",
			n, report.OffCalendar[0].Format(calendar.DateLayout)))
	}

	return issues
}
