package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/storage"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// IndicatorHandler serves the indicator library
// ⭐ SSOT: indicator API handlers
type IndicatorHandler struct {
	store  contracts.IndicatorStore
	logger *logger.Logger
}

// NewIndicatorHandler creates a new indicator handler
func NewIndicatorHandler(store contracts.IndicatorStore, log *logger.Logger) *IndicatorHandler {
	return &IndicatorHandler{store: store, logger: log}
}

// IndicatorResponse is one (filtered) indicator table
type IndicatorResponse struct {
	Name   string                     `json:"name"`
	Count  int                        `json:"count"`
	Points []contracts.IndicatorPoint `json:"points"`
}

// List returns every indicator name
// GET /api/indicators
func (h *IndicatorHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.ListIndicators(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list indicators")
		respondError(w, http.StatusInternalServerError, "Failed to list indicators")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"indicators": names,
		"count":      len(names),
	})
}

// Get returns one indicator table, optionally filtered
// GET /api/indicators/{name}?ticker=PETR4&from=2023-01-01&to=2023-12-31
func (h *IndicatorHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	q := r.URL.Query()
	from, to, ok := dateRange(w, q.Get("from"), q.Get("to"))
	if !ok {
		return
	}
	ticker := q.Get("ticker")

	series, err := h.store.LoadIndicator(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Indicator not found: "+name)
			return
		}
		h.logger.WithError(err).WithField("indicator", name).Error("Failed to load indicator")
		respondError(w, http.StatusInternalServerError, "Failed to load indicator")
		return
	}

	points := make([]contracts.IndicatorPoint, 0)
	for _, p := range series.Points {
		if ticker != "" && p.Ticker != ticker {
			continue
		}
		if !inRange(p.Date, from, to) {
			continue
		}
		points = append(points, p)
	}

	respondJSON(w, http.StatusOK, IndicatorResponse{
		Name:   series.Name,
		Count:  len(points),
		Points: points,
	})
}

// dateRange parses optional YYYY-MM-DD bounds and reports a 400 on failure
func dateRange(w http.ResponseWriter, fromStr, toStr string) (from, to time.Time, ok bool) {
	var err error
	if fromStr != "" {
		if from, err = contracts.ParseDate(fromStr); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'from' date format (expected YYYY-MM-DD)")
			return from, to, false
		}
	}
	if toStr != "" {
		if to, err = contracts.ParseDate(toStr); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'to' date format (expected YYYY-MM-DD)")
			return from, to, false
		}
	}
	return from, to, true
}

func inRange(d, from, to time.Time) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}
