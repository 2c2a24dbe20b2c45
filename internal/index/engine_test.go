package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/contracts"
	"github.com/wonny/indexmodel/internal/prices"
	"github.com/wonny/indexmodel/pkg/logger"
)

var (
	tickers    = []string{"Stock_A", "Stock_B", "Stock_C", "Stock_D", "Stock_E"}
	basePrices = map[string]float64{"Stock_A": 50, "Stock_B": 40, "Stock_C": 30, "Stock_D": 20, "Stock_E": 10}

	historyStart = calendar.Date(2019, 12, 2)
	historyEnd   = calendar.Date(2020, 3, 31)
)

// priceFunc returns the price of ticker on d; zero means missing
type priceFunc func(d time.Time, ticker string) float64

func flat(_ time.Time, ticker string) float64 {
	return basePrices[ticker]
}

// from overrides one ticker's price on and after date
func from(next priceFunc, date time.Time, ticker string, price float64) priceFunc {
	return func(d time.Time, t string) float64 {
		if t == ticker && !d.Before(date) {
			return price
		}
		return next(d, t)
	}
}

// on overrides one ticker's price on a single date
func on(next priceFunc, date time.Time, ticker string, price float64) priceFunc {
	return func(d time.Time, t string) float64 {
		if t == ticker && d.Equal(date) {
			return price
		}
		return next(d, t)
	}
}

func weekdays(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.New(calendar.MonToFri, nil)
	require.NoError(t, err)
	return cal
}

func buildTable(t *testing.T, price priceFunc) *prices.Table {
	t.Helper()
	b := prices.NewBuilder()
	b.Declare(tickers...)
	for _, d := range weekdays(t).BusinessDays(historyStart, historyEnd) {
		for _, ticker := range tickers {
			b.Add(d, ticker, price(d, ticker))
		}
	}
	table, err := b.Build()
	require.NoError(t, err)
	return table
}

func newEngine(t *testing.T, price priceFunc) *Engine {
	t.Helper()
	e, err := New(buildTable(t, price), weekdays(t), DefaultRules(), logger.NewNop())
	require.NoError(t, err)
	return e
}

func TestNew_SeedsBaseDate(t *testing.T) {
	e := newEngine(t, flat)

	assert.Equal(t, calendar.Date(2020, 1, 1), e.BaseDate())
	assert.Equal(t, Seeded, e.Phase())
	assert.Equal(t, contracts.Series{{Date: calendar.Date(2020, 1, 1), Value: 100}}, e.Levels())

	rebalances := e.Rebalances()
	require.Len(t, rebalances, 1)
	assert.Equal(t, calendar.Date(2019, 12, 31), rebalances[0].AsOf)
	assert.Equal(t, []string{"Stock_A", "Stock_B", "Stock_C"}, rebalances[0].Constituents)
	assert.Equal(t, 100.0, rebalances[0].BaseLevel)

	state := e.State()
	assert.Equal(t, []float64{1, 1, 1}, state.CumulativeReturns)
	assert.Equal(t, 100.0, state.BaseLevel)
}

func TestNew_StartOnWeekendRollsForward(t *testing.T) {
	rules := DefaultRules()
	rules.StartDate = calendar.Date(2020, 2, 1)

	e, err := New(buildTable(t, flat), weekdays(t), rules, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, calendar.Date(2020, 2, 3), e.BaseDate())
	assert.Equal(t, calendar.Date(2020, 1, 31), e.Rebalances()[0].AsOf)
}

func TestNew_Errors(t *testing.T) {
	table := buildTable(t, flat)
	cal := weekdays(t)

	tests := []struct {
		name    string
		rules   func(r *Rules)
		wantErr error
	}{
		{
			name:    "more constituents than tickers",
			rules:   func(r *Rules) { r.Weights = []float64{0.2, 0.2, 0.2, 0.2, 0.1, 0.1} },
			wantErr: ErrInsufficientConstituents,
		},
		{
			name:    "start after last price",
			rules:   func(r *Rules) { r.StartDate = calendar.Date(2021, 1, 1) },
			wantErr: ErrInsufficientHistory,
		},
		{
			name:    "start before first price",
			rules:   func(r *Rules) { r.StartDate = calendar.Date(2019, 11, 1) },
			wantErr: ErrMissingPriceData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := DefaultRules()
			tt.rules(&rules)
			_, err := New(table, cal, rules, logger.NewNop())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("no weights", func(t *testing.T) {
		_, err := New(table, cal, Rules{StartDate: calendar.Date(2020, 1, 1), InitialLevel: 100}, logger.NewNop())
		assert.Error(t, err)
	})

	t.Run("non-positive initial level", func(t *testing.T) {
		rules := DefaultRules()
		rules.InitialLevel = 0
		_, err := New(table, cal, rules, logger.NewNop())
		assert.Error(t, err)
	})
}

func TestComputeLevels_FirstDay(t *testing.T) {
	d := calendar.Date(2020, 1, 2)
	price := from(flat, d, "Stock_A", 51)   // +2%
	price = from(price, d, "Stock_B", 40.4) // +1%
	price = from(price, d, "Stock_C", 29.7) // -1%
	e := newEngine(t, price)

	series, err := e.ComputeLevels(calendar.Date(2020, 1, 1), d)
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Equal(t, 100.0, series[0].Value)
	assert.Equal(t, d, series[1].Date)
	assert.InDelta(t, 101.0, series[1].Value, 1e-9)
	assert.Equal(t, Done, e.Phase())
}

func TestComputeLevels_InvalidRange(t *testing.T) {
	e := newEngine(t, flat)

	_, err := e.ComputeLevels(calendar.Date(2020, 1, 1), calendar.Date(2019, 12, 31))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestComputeLevels_InsufficientHistory(t *testing.T) {
	e := newEngine(t, flat)

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"end after last price", calendar.Date(2020, 1, 1), calendar.Date(2020, 4, 1)},
		{"start before index start", calendar.Date(2019, 12, 31), calendar.Date(2020, 1, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ComputeLevels(tt.start, tt.end)
			assert.ErrorIs(t, err, ErrInsufficientHistory)
		})
	}
}

func TestComputeLevels_BusinessDaysInOrder(t *testing.T) {
	e := newEngine(t, flat)
	cal := weekdays(t)

	series, err := e.ComputeLevels(calendar.Date(2020, 1, 1), calendar.Date(2020, 1, 31))
	require.NoError(t, err)
	require.Len(t, series, 23)

	assert.Equal(t, 100.0, series[0].Value)
	for i, l := range series {
		assert.True(t, cal.IsBusinessDay(l.Date), l.Date)
		if i > 0 {
			assert.True(t, l.Date.After(series[i-1].Date))
		}
	}
}

func TestComputeLevels_StartFiltersResult(t *testing.T) {
	d := calendar.Date(2020, 1, 2)
	e := newEngine(t, from(flat, d, "Stock_A", 60))

	series, err := e.ComputeLevels(calendar.Date(2020, 1, 6), calendar.Date(2020, 1, 7))
	require.NoError(t, err)
	require.Len(t, series, 2)

	// chained from the base date, not restarted at 100
	assert.InDelta(t, 110.0, series[0].Value, 1e-9)
	assert.Equal(t, calendar.Date(2020, 1, 6), series[0].Date)
}

func TestComputeLevels_Rebalance(t *testing.T) {
	price := from(flat, calendar.Date(2020, 1, 31), "Stock_E", 100)
	price = from(price, calendar.Date(2020, 2, 3), "Stock_A", 55)
	price = from(price, calendar.Date(2020, 2, 4), "Stock_E", 110)
	e := newEngine(t, price)

	series, err := e.ComputeLevels(calendar.Date(2020, 1, 30), calendar.Date(2020, 2, 4))
	require.NoError(t, err)
	require.Len(t, series, 4)

	// Jan 31: Stock_E is not a constituent yet
	assert.InDelta(t, 100.0, series[1].Value, 1e-9)
	// Feb 3: old constituents still earn the day's return
	assert.InDelta(t, 105.0, series[2].Value, 1e-9)
	// Feb 4: new epoch from 105 with Stock_E at 50%
	assert.InDelta(t, 110.25, series[3].Value, 1e-9)

	rebalances := e.Rebalances()
	require.Len(t, rebalances, 2)
	assert.Equal(t, calendar.Date(2020, 2, 3), rebalances[1].Date)
	assert.Equal(t, calendar.Date(2020, 1, 31), rebalances[1].AsOf)
	assert.Equal(t, []string{"Stock_E", "Stock_A", "Stock_B"}, rebalances[1].Constituents)
	assert.InDelta(t, 105.0, rebalances[1].BaseLevel, 1e-9)

	state := e.State()
	assert.Equal(t, []string{"Stock_E", "Stock_A", "Stock_B"}, state.Constituents)
	assert.InDelta(t, 105.0, state.BaseLevel, 1e-9)
	assert.InDeltaSlice(t, []float64{1.1, 1, 1}, state.CumulativeReturns, 1e-9)
	assert.Equal(t, calendar.Date(2020, 2, 4), state.LastProcessed)
}

func TestComputeLevels_Idempotent(t *testing.T) {
	price := from(flat, calendar.Date(2020, 1, 15), "Stock_B", 44)
	price = from(price, calendar.Date(2020, 2, 10), "Stock_D", 80)
	e := newEngine(t, price)

	start, end := calendar.Date(2020, 1, 1), calendar.Date(2020, 3, 31)

	first, err := e.ComputeLevels(start, end)
	require.NoError(t, err)
	second, err := e.ComputeLevels(start, end)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	narrow, err := e.ComputeLevels(calendar.Date(2020, 2, 1), calendar.Date(2020, 2, 29))
	require.NoError(t, err)
	assert.Equal(t, first.Between(calendar.Date(2020, 2, 1), calendar.Date(2020, 2, 29)), narrow)

	// incremental walks land on the same series as one long walk
	stepwise := newEngine(t, price)
	for _, through := range []time.Time{calendar.Date(2020, 1, 20), calendar.Date(2020, 2, 20), end} {
		_, err := stepwise.ComputeLevels(start, through)
		require.NoError(t, err)
	}
	assert.Equal(t, e.Levels(), stepwise.Levels())
	assert.Equal(t, e.Rebalances(), stepwise.Rebalances())
}

func TestComputeLevels_SkipsDaysWithMissingPrices(t *testing.T) {
	price := from(flat, calendar.Date(2020, 1, 7), "Stock_A", 60)
	price = on(price, calendar.Date(2020, 1, 7), "Stock_B", 0)
	e := newEngine(t, price)

	series, err := e.ComputeLevels(calendar.Date(2020, 1, 6), calendar.Date(2020, 1, 9))
	require.NoError(t, err)

	// Jan 7 lacks Stock_B; Jan 8 lacks its previous-day price
	require.Len(t, series, 2)
	assert.Equal(t, calendar.Date(2020, 1, 6), series[0].Date)
	assert.Equal(t, calendar.Date(2020, 1, 9), series[1].Date)
	assert.InDelta(t, 100.0, series[1].Value, 1e-9)
}

func TestComputeLevels_MissingNonConstituentIsIgnored(t *testing.T) {
	e := newEngine(t, on(flat, calendar.Date(2020, 1, 7), "Stock_E", 0))

	series, err := e.ComputeLevels(calendar.Date(2020, 1, 6), calendar.Date(2020, 1, 9))
	require.NoError(t, err)
	assert.Len(t, series, 4)
}

func TestComputeLevels_DeferredRebalance(t *testing.T) {
	price := from(flat, calendar.Date(2020, 1, 31), "Stock_D", 45)
	price = on(price, calendar.Date(2020, 2, 3), "Stock_A", 0)
	e := newEngine(t, price)

	series, err := e.ComputeLevels(calendar.Date(2020, 2, 1), calendar.Date(2020, 2, 6))
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, calendar.Date(2020, 2, 5), series[0].Date)

	rebalances := e.Rebalances()
	require.Len(t, rebalances, 2)
	assert.Equal(t, calendar.Date(2020, 2, 5), rebalances[1].Date)
	assert.Equal(t, calendar.Date(2020, 1, 31), rebalances[1].AsOf)
	assert.Equal(t, []string{"Stock_A", "Stock_D", "Stock_B"}, rebalances[1].Constituents)
}

func TestComputeLevels_RebalanceWithoutSnapshotFails(t *testing.T) {
	price := flat
	for _, ticker := range tickers {
		price = on(price, calendar.Date(2020, 1, 31), ticker, 0)
	}
	e := newEngine(t, price)

	_, err := e.ComputeLevels(calendar.Date(2020, 1, 1), calendar.Date(2020, 2, 10))
	assert.ErrorIs(t, err, ErrMissingPriceData)

	// the failed day is not committed
	last, ok := e.Levels().Last()
	require.True(t, ok)
	assert.Equal(t, calendar.Date(2020, 1, 30), last.Date)
	assert.Equal(t, calendar.Date(2020, 2, 3), e.State().LastProcessed)
}

func TestRulesReturnsCopy(t *testing.T) {
	e := newEngine(t, flat)
	r := e.Rules()
	r.Weights[0] = 0.9
	assert.Equal(t, 0.5, e.Rules().Weights[0])
}
