package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b3factor/backend/internal/api/handlers"
	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/internal/storage"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

type fakeQuality struct{}

func (fakeQuality) GetLatest(ctx context.Context) (*contracts.DataQualitySnapshot, error) {
	return &contracts.DataQualitySnapshot{Date: day(5), QualityScore: 0.9, ValidTickers: 3, Passed: true}, nil
}

func newTestRouter(t *testing.T, quality handlers.QualityReader) http.Handler {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewParquetStore(t.TempDir(), logger.Nop())
	require.NoError(t, err)
	require.NoError(t, store.SaveIndicator(ctx, contracts.IndicatorSeries{
		Name: "roe",
		Points: []contracts.IndicatorPoint{
			{Date: day(2), Ticker: "PETR4", Value: null.FloatFrom(0.2)},
			{Date: day(3), Ticker: "PETR4", Value: null.FloatFrom(0.21)},
			{Date: day(2), Ticker: "VALE3", Value: null.Float{}},
		},
	}))
	require.NoError(t, store.SavePremium(ctx, contracts.PremiumSeries{
		Strategy: "value",
		Floor:    0,
		Rows: []contracts.PremiumRow{
			{Date: day(1), Q1: 0.01, Universe: 8},
			{Date: day(31), Q1: 0.02, Universe: 8},
		},
	}))

	strategies := []contracts.Strategy{{Name: "value", Floors: []float64{0}}}
	return NewRouter(Handlers{
		Data:       handlers.NewDataHandler(quality, logger.Nop()),
		Indicators: handlers.NewIndicatorHandler(store, logger.Nop()),
		Premiums:   handlers.NewPremiumHandler(store, strategies, logger.Nop()),
	}, logger.Nop())
}

func get(t *testing.T, h http.Handler, url string, out interface{}) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestRouter_Health(t *testing.T) {
	var body map[string]string
	assert.Equal(t, http.StatusOK, get(t, newTestRouter(t, nil), "/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Indicators(t *testing.T) {
	h := newTestRouter(t, nil)

	var list struct {
		Indicators []string `json:"indicators"`
	}
	assert.Equal(t, http.StatusOK, get(t, h, "/api/indicators", &list))
	assert.Equal(t, []string{"roe"}, list.Indicators)

	var resp handlers.IndicatorResponse
	assert.Equal(t, http.StatusOK, get(t, h, "/api/indicators/roe?ticker=PETR4&from=2024-01-03", &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, day(3), resp.Points[0].Date)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/indicators/missing", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/indicators/roe?from=yesterday", nil))
}

func TestRouter_Premiums(t *testing.T) {
	h := newTestRouter(t, nil)

	var series contracts.PremiumSeries
	assert.Equal(t, http.StatusOK, get(t, h, "/api/premiums/value?to=2024-01-15", &series))
	assert.Equal(t, "value", series.Strategy)
	require.Len(t, series.Rows, 1)
	assert.Equal(t, 8.0, series.Rows[0].Universe)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/premiums/value?floor=5", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/premiums/value?floor=-1", nil))
}

func TestRouter_Quality(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get(t, newTestRouter(t, nil), "/api/data/quality", nil))

	var snapshot contracts.DataQualitySnapshot
	assert.Equal(t, http.StatusOK, get(t, newTestRouter(t, fakeQuality{}), "/api/data/quality", &snapshot))
	assert.Equal(t, 3, snapshot.ValidTickers)
}
