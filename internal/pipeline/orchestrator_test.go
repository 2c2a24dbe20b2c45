package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/index"
	"github.com/wonny/indexmodel/internal/indexconfig"
	"github.com/wonny/indexmodel/internal/prices"
	"github.com/wonny/indexmodel/pkg/logger"
)

type memLoader struct {
	table       *prices.Table
	err         error
	invalidated int
}

func (l *memLoader) LoadTable(context.Context, time.Time, time.Time) (*prices.Table, error) {
	return l.table, l.err
}

func (l *memLoader) Source() string { return "memory" }

func (l *memLoader) Invalidate(context.Context, time.Time, time.Time) error {
	l.invalidated++
	return nil
}

type recordingPublisher struct {
	engines []*index.Engine
}

func (p *recordingPublisher) Swap(e *index.Engine) {
	p.engines = append(p.engines, e)
}

func testTable(t *testing.T) *prices.Table {
	t.Helper()
	cal, err := calendar.New(calendar.MonToFri, nil)
	require.NoError(t, err)

	b := prices.NewBuilder()
	for i, d := range cal.BusinessDays(calendar.Date(2019, 12, 2), calendar.Date(2020, 3, 31)) {
		b.Add(d, "Stock_A", 50+float64(i%4))
		b.Add(d, "Stock_B", 40+float64(i%3))
		b.Add(d, "Stock_C", 30)
		b.Add(d, "Stock_D", 20+float64(i))
	}
	table, err := b.Build()
	require.NoError(t, err)
	return table
}

func newOrchestrator(t *testing.T, loader prices.TableLoader, pub Publisher) *Orchestrator {
	t.Helper()
	cfg, data, err := indexconfig.LoadOrDefault("")
	require.NoError(t, err)
	return NewOrchestrator(cfg, data, loader, nil, pub, logger.NewNop())
}

func TestRun_ComputesExportsAndPublishes(t *testing.T) {
	loader := &memLoader{table: testTable(t)}
	pub := &recordingPublisher{}
	out := filepath.Join(t.TempDir(), "export.csv")

	result, err := newOrchestrator(t, loader, pub).Run(context.Background(), RunConfig{
		RunID:      "test",
		OutputFile: out,
		Refresh:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"load", "check", "compute", "export", "publish"}, result.CompletedStages)
	assert.Equal(t, 1, loader.invalidated)
	require.Len(t, pub.engines, 1)
	assert.Same(t, result.Engine, pub.engines[0])

	first := result.Series[0]
	assert.Equal(t, calendar.Date(2020, 1, 1), first.Date)
	assert.Equal(t, 100.0, first.Value)
	last, _ := result.Series.Last()
	assert.Equal(t, calendar.Date(2020, 3, 31), last.Date)

	// seed plus the February and March rebalances; Stock_D climbs to the top
	require.Len(t, result.Rebalances, 3)
	assert.Equal(t, "Stock_D", result.Rebalances[2].Constituents[0])

	assert.True(t, result.Quality.Passed)
	assert.Equal(t, "memory", result.Snapshot.PriceSource)
	assert.Len(t, result.Snapshot.ConfigHash, 64)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "Date,index_level", lines[0])
	assert.Equal(t, "01/01/2020,100", lines[1])
	assert.Len(t, lines, len(result.Series)+1)
}

func TestRun_Range(t *testing.T) {
	loader := &memLoader{table: testTable(t)}

	result, err := newOrchestrator(t, loader, nil).Run(context.Background(), RunConfig{
		From: calendar.Date(2020, 2, 1),
		To:   calendar.Date(2020, 2, 29),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"load", "check", "compute"}, result.CompletedStages)
	assert.Equal(t, calendar.Date(2020, 2, 3), result.Series[0].Date)
	assert.Equal(t, 0, loader.invalidated)
}

func TestRun_StopsAtFailingStage(t *testing.T) {
	loader := &memLoader{err: errors.New("disk gone")}

	result, err := newOrchestrator(t, loader, nil).Run(context.Background(), RunConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load prices")
	assert.Empty(t, result.CompletedStages)

	loader = &memLoader{table: testTable(t)}
	result, err = newOrchestrator(t, loader, nil).Run(context.Background(), RunConfig{
		From: calendar.Date(2020, 3, 1),
		To:   calendar.Date(2020, 2, 1),
	})
	assert.ErrorIs(t, err, index.ErrInvalidRange)
	assert.Equal(t, []string{"load", "check"}, result.CompletedStages)
}
