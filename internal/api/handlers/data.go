package handlers

import (
	"context"
	"net/http"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// QualityReader serves stored quality snapshots
type QualityReader interface {
	GetLatest(ctx context.Context) (*contracts.DataQualitySnapshot, error)
}

// DataHandler handles input data endpoints
type DataHandler struct {
	quality QualityReader // nil without a database
	logger  *logger.Logger
}

// NewDataHandler creates a new data handler. quality may be nil.
func NewDataHandler(quality QualityReader, log *logger.Logger) *DataHandler {
	return &DataHandler{quality: quality, logger: log}
}

// GetQuality returns the latest data quality snapshot
// GET /api/data/quality
func (h *DataHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	if h.quality == nil {
		respondError(w, http.StatusNotFound, "Quality snapshots are stored only with a database")
		return
	}

	snapshot, err := h.quality.GetLatest(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get quality snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve quality snapshot")
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}
