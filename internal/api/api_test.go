package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/indexmodel/internal/api/handlers"
	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/index"
	"github.com/wonny/indexmodel/internal/prices"
	"github.com/wonny/indexmodel/pkg/config"
	"github.com/wonny/indexmodel/pkg/logger"
)

func testEngine(t *testing.T) *index.Engine {
	t.Helper()

	cal, err := calendar.New(calendar.MonToFri, nil)
	require.NoError(t, err)

	b := prices.NewBuilder()
	for i, d := range cal.BusinessDays(calendar.Date(2019, 12, 2), calendar.Date(2020, 2, 28)) {
		b.Add(d, "Stock_A", 50+float64(i%3))
		b.Add(d, "Stock_B", 40)
		b.Add(d, "Stock_C", 30-float64(i%2))
		b.Add(d, "Stock_D", 20)
	}
	table, err := b.Build()
	require.NoError(t, err)

	engine, err := index.New(table, cal, index.DefaultRules(), logger.NewNop())
	require.NoError(t, err)
	return engine
}

func testRouter(t *testing.T) (http.Handler, *LevelService) {
	t.Helper()
	service := NewLevelService(testEngine(t), "top3_price_weighted")
	log := logger.NewNop()
	return NewRouter(handlers.NewIndexHandler(service, log), log), service
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := testRouter(t)

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestGetLevels(t *testing.T) {
	h, _ := testRouter(t)

	rec := get(t, h, "/api/levels?from=2020-01-01&to=2020-01-07")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body handlers.LevelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "top3_price_weighted", body.IndexID)
	assert.Equal(t, 5, body.Count)
	assert.Equal(t, "2020-01-01", body.Levels[0].Date)
	assert.Equal(t, 100.0, body.Levels[0].Value)
}

func TestGetLevels_DefaultsToFullHistory(t *testing.T) {
	h, _ := testRouter(t)

	rec := get(t, h, "/api/levels")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body handlers.LevelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2020-01-01", body.From)
	assert.Equal(t, "2020-02-28", body.To)
}

func TestGetLevels_Errors(t *testing.T) {
	h, _ := testRouter(t)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"start after end", "/api/levels?from=2020-01-01&to=2019-12-31", http.StatusBadRequest},
		{"bad from date", "/api/levels?from=01/01/2020", http.StatusBadRequest},
		{"bad to date", "/api/levels?to=tomorrow", http.StatusBadRequest},
		{"beyond history", "/api/levels?from=2020-01-01&to=2020-06-30", http.StatusUnprocessableEntity},
		{"before index start", "/api/levels?from=2019-12-02&to=2020-01-10", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestGetRebalances(t *testing.T) {
	h, _ := testRouter(t)

	// walking through February adds the Feb 3 rebalance
	require.Equal(t, http.StatusOK, get(t, h, "/api/levels?to=2020-02-10").Code)

	rec := get(t, h, "/api/rebalances")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		IndexID    string                   `json:"index_id"`
		Rebalances []handlers.RebalanceItem `json:"rebalances"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rebalances, 2)
	assert.Equal(t, "2019-12-31", body.Rebalances[0].AsOf)
	assert.Equal(t, "2020-02-03", body.Rebalances[1].Date)
	assert.Equal(t, []string{"Stock_A", "Stock_B", "Stock_C"}, body.Rebalances[0].Constituents)
}

func TestGetSummaryAndState(t *testing.T) {
	h, _ := testRouter(t)

	rec := get(t, h, "/api/summary?from=2020-01-01&to=2020-01-31")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary index.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 23, summary.Days)
	assert.Equal(t, 100.0, summary.StartLevel)

	rec = get(t, h, "/api/state")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"constituents"`)
}

func TestUnknownMethod(t *testing.T) {
	h, _ := testRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/levels", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLevelService_ConcurrentRequests(t *testing.T) {
	h, _ := testRouter(t)

	targets := []string{
		"/api/levels?to=2020-01-15",
		"/api/levels?to=2020-02-28",
		"/api/rebalances",
		"/api/summary",
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			rec := get(t, h, target)
			assert.Equal(t, http.StatusOK, rec.Code)
		}(targets[i%len(targets)])
	}
	wg.Wait()
}

func TestLevelService_Swap(t *testing.T) {
	_, service := testRouter(t)
	before := service.Updated()

	next := testEngine(t)
	service.Swap(next)

	assert.False(t, service.Updated().Before(before))
	last := service.State().LastProcessed
	assert.Equal(t, calendar.Date(2020, 1, 1), last)
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	cfg := &config.Config{Port: "0", Env: "development"}
	srv := New(cfg, logger.NewNop(), http.NewServeMux())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
