package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/storage"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// PremiumHandler serves premium tables of the configured strategies
type PremiumHandler struct {
	store      contracts.PremiumStore
	strategies []contracts.Strategy
	logger     *logger.Logger
}

// NewPremiumHandler creates a new premium handler
func NewPremiumHandler(store contracts.PremiumStore, strategies []contracts.Strategy, log *logger.Logger) *PremiumHandler {
	return &PremiumHandler{store: store, strategies: strategies, logger: log}
}

// List returns the configured strategies and their liquidity floors
// GET /api/premiums
func (h *PremiumHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": h.strategies,
		"count":      len(h.strategies),
	})
}

// Get returns one premium table
// GET /api/premiums/{strategy}?floor=1000000&from=2020-01-01
func (h *PremiumHandler) Get(w http.ResponseWriter, r *http.Request) {
	strategy := mux.Vars(r)["strategy"]

	q := r.URL.Query()
	floor := 0.0
	if s := q.Get("floor"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'floor' (expected a non-negative number)")
			return
		}
		floor = v
	}
	from, to, ok := dateRange(w, q.Get("from"), q.Get("to"))
	if !ok {
		return
	}

	series, err := h.store.LoadPremium(r.Context(), strategy, floor)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Premium table not found: "+strategy)
			return
		}
		h.logger.WithError(err).WithField("strategy", strategy).Error("Failed to load premium")
		respondError(w, http.StatusInternalServerError, "Failed to load premium")
		return
	}

	rows := make([]contracts.PremiumRow, 0, len(series.Rows))
	for _, row := range series.Rows {
		if inRange(row.Date, from, to) {
			rows = append(rows, row)
		}
	}
	series.Rows = rows

	respondJSON(w, http.StatusOK, series)
}
