package index

import (
	"errors"
	"fmt"
	"time"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/contracts"
	"github.com/wonny/indexmodel/internal/selection"
	"github.com/wonny/indexmodel/pkg/logger"
)

// Rules are the fixed parameters of an index
type Rules struct {
	Weights      []float64 // positional, one per constituent
	StartDate    time.Time // seeded on the first business day on or after this date
	InitialLevel float64
}

// DefaultRules returns the 3-constituent 50/25/25 index starting 2020-01-01 at 100
func DefaultRules() Rules {
	return Rules{
		Weights:      []float64{0.5, 0.25, 0.25},
		StartDate:    calendar.Date(2020, 1, 1),
		InitialLevel: 100,
	}
}

// Phase is the lifecycle position of an Engine
type Phase int

const (
	Seeded  Phase = iota // only the base date has a level
	Walking              // a walk is in progress
	Done                 // the last walk reached its end date
)

func (p Phase) String() string {
	switch p {
	case Seeded:
		return "seeded"
	case Walking:
		return "walking"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// state is what one day hands to the next
type state struct {
	baseLevel    float64
	cumReturns   []float64
	constituents []string
}

// State is a read-only copy of the rebalance state after the last processed day
type State struct {
	BaseLevel         float64   `json:"base_level"`
	CumulativeReturns []float64 `json:"cumulative_returns"`
	Constituents      []string  `json:"constituents"`
	LastProcessed     time.Time `json:"last_processed"`
}

// Engine computes the level series of one index.
// An Engine owns its series and rebalance state and is not safe for concurrent use.
// ⭐ SSOT: index level computation happens here only
type Engine struct {
	provider contracts.PriceProvider
	calendar *calendar.Calendar
	selector *selection.Selector
	rules    Rules
	logger   *logger.Logger

	baseDate   time.Time
	series     contracts.Series
	rebalances []contracts.Rebalance
	state      state
	lastDay    time.Time
	pending    time.Time // trigger day of a rebalance not yet applied; zero when none
	phase      Phase
}

// New seeds an engine: the base date gets the initial level and the first
// constituents are selected as of the previous month's last business day.
func New(provider contracts.PriceProvider, cal *calendar.Calendar, rules Rules, log *logger.Logger) (*Engine, error) {
	if len(rules.Weights) == 0 {
		return nil, errors.New("index rules need at least one weight")
	}
	if rules.InitialLevel <= 0 {
		return nil, fmt.Errorf("initial level must be positive, got %v", rules.InitialLevel)
	}

	e := &Engine{
		provider: provider,
		calendar: cal,
		selector: selection.NewSelector(provider, log),
		rules:    rules,
		logger:   log,
		baseDate: cal.RollForward(rules.StartDate),
	}

	_, last := provider.Range()
	if e.baseDate.After(last) {
		return nil, fmt.Errorf("%w: index starts %s but prices end %s",
			contracts.ErrInsufficientHistory, day(e.baseDate), day(last))
	}

	asOf := cal.LastBusinessDayOfPreviousMonth(e.baseDate)
	constituents, err := e.selector.SelectTop(asOf, len(rules.Weights))
	if err != nil {
		return nil, fmt.Errorf("initial selection: %w", err)
	}

	e.state = state{
		baseLevel:    rules.InitialLevel,
		cumReturns:   ones(len(rules.Weights)),
		constituents: constituents,
	}
	e.series = contracts.Series{{Date: e.baseDate, Value: rules.InitialLevel}}
	e.rebalances = []contracts.Rebalance{{
		Date:         e.baseDate,
		AsOf:         asOf,
		Constituents: constituents,
		BaseLevel:    rules.InitialLevel,
	}}
	e.lastDay = e.baseDate
	e.phase = Seeded

	e.logger.WithFields(map[string]interface{}{
		"base_date":     day(e.baseDate),
		"as_of":         day(asOf),
		"constituents":  constituents,
		"initial_level": rules.InitialLevel,
	}).Info("Index seeded")

	return e, nil
}

// ComputeLevels returns the levels for business days in [start, end].
// The walk always chains from the base date; start only filters the result.
func (e *Engine) ComputeLevels(start, end time.Time) (contracts.Series, error) {
	start, end = calendar.Normalize(start), calendar.Normalize(end)

	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s", contracts.ErrInvalidRange, day(start), day(end))
	}

	lower, upper := e.HistoryRange()
	if start.Before(lower) || end.After(upper) {
		return nil, fmt.Errorf("%w: requested %s..%s, available %s..%s",
			contracts.ErrInsufficientHistory, day(start), day(end), day(lower), day(upper))
	}

	if end.After(e.lastDay) {
		if err := e.walk(end); err != nil {
			return nil, err
		}
	}

	return e.series.Between(start, end), nil
}

// HistoryRange is the widest [start, end] ComputeLevels accepts
func (e *Engine) HistoryRange() (time.Time, time.Time) {
	first, last := e.provider.Range()
	lower := calendar.Normalize(e.rules.StartDate)
	if first.After(lower) {
		lower = first
	}
	return lower, last
}

func (e *Engine) walk(end time.Time) error {
	e.phase = Walking
	started := time.Now()
	var processed, skipped, rebalanced int

	for d := e.calendar.NextBusinessDay(e.lastDay); !d.After(end); d = e.calendar.NextBusinessDay(d) {
		recorded, didRebalance, err := e.step(d)
		if err != nil {
			return err
		}
		e.lastDay = d
		processed++
		if !recorded {
			skipped++
		}
		if didRebalance {
			rebalanced++
		}
	}

	e.phase = Done

	e.logger.WithFields(map[string]interface{}{
		"through":    day(end),
		"days":       processed,
		"skipped":    skipped,
		"rebalances": rebalanced,
		"duration":   time.Since(started).String(),
	}).Info("Index walk completed")

	return nil
}

// step processes one business day. Nothing is committed when it fails.
func (e *Engine) step(d time.Time) (recorded, rebalanced bool, err error) {
	if e.calendar.FirstBusinessDayOfMonth(d).Equal(d) {
		e.pending = d
	}

	prev := e.calendar.PreviousBusinessDay(d)
	ratios, ok := e.ratios(d, prev)
	if !ok {
		e.logger.WithFields(map[string]interface{}{
			"date":     day(d),
			"previous": day(prev),
		}).Debug("Missing prices, day skipped")
		return false, false, nil
	}

	cum := make([]float64, len(e.state.cumReturns))
	for i := range cum {
		cum[i] = e.state.cumReturns[i] * ratios[i]
	}
	level := e.state.baseLevel * dot(cum, e.rules.Weights)

	next := state{baseLevel: e.state.baseLevel, cumReturns: cum, constituents: e.state.constituents}
	var record *contracts.Rebalance

	if !e.pending.IsZero() {
		asOf := e.calendar.LastBusinessDayOfPreviousMonth(e.pending)
		constituents, err := e.selector.SelectTop(asOf, len(e.rules.Weights))
		if err != nil {
			return false, false, fmt.Errorf("rebalance on %s: %w", day(d), err)
		}
		next = state{baseLevel: level, cumReturns: ones(len(cum)), constituents: constituents}
		record = &contracts.Rebalance{Date: d, AsOf: asOf, Constituents: constituents, BaseLevel: level}
	}

	e.series = append(e.series, contracts.Level{Date: d, Value: level})
	e.state = next

	if record != nil {
		if !record.Date.Equal(e.pending) {
			e.logger.WithFields(map[string]interface{}{
				"trigger": day(e.pending),
				"applied": day(d),
			}).Warn("Rebalance deferred by missing prices")
		}
		e.pending = time.Time{}
		e.rebalances = append(e.rebalances, *record)

		e.logger.WithFields(map[string]interface{}{
			"date":         day(d),
			"as_of":        day(record.AsOf),
			"constituents": record.Constituents,
			"base_level":   level,
		}).Info("Index rebalanced")
	}

	return true, record != nil, nil
}

// ratios returns price(d)/price(prev) per active constituent; ok is false when any price is missing
func (e *Engine) ratios(d, prev time.Time) ([]float64, bool) {
	ratios := make([]float64, len(e.state.constituents))
	for i, ticker := range e.state.constituents {
		today, ok := e.provider.PriceAt(ticker, d)
		if !ok {
			return nil, false
		}
		before, ok := e.provider.PriceAt(ticker, prev)
		if !ok {
			return nil, false
		}
		ratios[i] = today / before
	}
	return ratios, true
}

// Levels returns a copy of every level computed so far
func (e *Engine) Levels() contracts.Series {
	return append(contracts.Series(nil), e.series...)
}

// Rebalances returns a copy of the rebalance log, including the initial selection
func (e *Engine) Rebalances() []contracts.Rebalance {
	out := make([]contracts.Rebalance, len(e.rebalances))
	for i, r := range e.rebalances {
		r.Constituents = append([]string(nil), r.Constituents...)
		out[i] = r
	}
	return out
}

// State returns a copy of the rebalance state after the last processed day
func (e *Engine) State() State {
	return State{
		BaseLevel:         e.state.baseLevel,
		CumulativeReturns: append([]float64(nil), e.state.cumReturns...),
		Constituents:      append([]string(nil), e.state.constituents...),
		LastProcessed:     e.lastDay,
	}
}

// BaseDate returns the seeded date
func (e *Engine) BaseDate() time.Time {
	return e.baseDate
}

// Phase returns the lifecycle phase
func (e *Engine) Phase() Phase {
	return e.phase
}

// Rules returns the index rules
func (e *Engine) Rules() Rules {
	r := e.rules
	r.Weights = append([]float64(nil), e.rules.Weights...)
	return r
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func day(t time.Time) string {
	return t.Format(calendar.DateLayout)
}
