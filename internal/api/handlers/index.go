package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/internal/contracts"
	"github.com/wonny/indexmodel/internal/index"
	"github.com/wonny/indexmodel/pkg/logger"
)

// LevelReader is the read side of a served index
type LevelReader interface {
	IndexID() string
	Levels(from, to time.Time) (contracts.Series, error)
	Rebalances() []contracts.Rebalance
	State() index.State
	HistoryRange() (time.Time, time.Time)
}

// IndexHandler handles index API endpoints
// ⭐ SSOT: index API handlers live in this struct only
type IndexHandler struct {
	reader LevelReader
	logger *logger.Logger
}

// NewIndexHandler creates a new index handler
func NewIndexHandler(reader LevelReader, log *logger.Logger) *IndexHandler {
	return &IndexHandler{
		reader: reader,
		logger: log,
	}
}

// LevelItem is one level in API responses
type LevelItem struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// LevelsResponse is the body of GET /api/levels
type LevelsResponse struct {
	IndexID string      `json:"index_id"`
	From    string      `json:"from"`
	To      string      `json:"to"`
	Count   int         `json:"count"`
	Levels  []LevelItem `json:"levels"`
}

// RebalanceItem is one rebalance in API responses
type RebalanceItem struct {
	Date         string   `json:"date"`
	AsOf         string   `json:"as_of"`
	Constituents []string `json:"constituents"`
	BaseLevel    float64  `json:"base_level"`
}

// GetLevels returns index levels for a date range
// GET /api/levels?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *IndexHandler) GetLevels(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	series, err := h.reader.Levels(from, to)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	items := make([]LevelItem, len(series))
	for i, l := range series {
		items[i] = LevelItem{Date: l.Date.Format(calendar.DateLayout), Value: l.Value}
	}

	respondJSON(w, http.StatusOK, LevelsResponse{
		IndexID: h.reader.IndexID(),
		From:    from.Format(calendar.DateLayout),
		To:      to.Format(calendar.DateLayout),
		Count:   len(items),
		Levels:  items,
	})
}

// GetSummary returns performance metrics for a date range
// GET /api/summary?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *IndexHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	series, err := h.reader.Levels(from, to)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, index.Summarize(series))
}

// GetRebalances returns the rebalance log
// GET /api/rebalances
func (h *IndexHandler) GetRebalances(w http.ResponseWriter, r *http.Request) {
	rebalances := h.reader.Rebalances()

	items := make([]RebalanceItem, len(rebalances))
	for i, rb := range rebalances {
		items[i] = RebalanceItem{
			Date:         rb.Date.Format(calendar.DateLayout),
			AsOf:         rb.AsOf.Format(calendar.DateLayout),
			Constituents: rb.Constituents,
			BaseLevel:    rb.BaseLevel,
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"index_id":   h.reader.IndexID(),
		"rebalances": items,
	})
}

// GetState returns the current rebalance state
// GET /api/state
func (h *IndexHandler) GetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.reader.State())
}

// parseRange reads from/to, defaulting to the full available history
func (h *IndexHandler) parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, to := h.reader.HistoryRange()
	q := r.URL.Query()

	if s := q.Get("from"); s != "" {
		d, err := calendar.ParseDate(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid from date (expected YYYY-MM-DD)")
			return time.Time{}, time.Time{}, false
		}
		from = d
	}
	if s := q.Get("to"); s != "" {
		d, err := calendar.ParseDate(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid to date (expected YYYY-MM-DD)")
			return time.Time{}, time.Time{}, false
		}
		to = d
	}

	return from, to, true
}

func (h *IndexHandler) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, index.ErrInvalidRange):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, index.ErrInsufficientHistory):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.WithError(err).Error("Failed to compute levels")
		respondError(w, http.StatusInternalServerError, "Failed to compute levels")
	}
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
