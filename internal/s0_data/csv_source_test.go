package s0_data

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/config"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestCSVSource_LoadFacts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FactsFile, `report_date,disclosure_date,ticker,account,value,shares
2023-03-31,2023-05-10,PETR4,3.01,1000.5,13044496930
2023-03-31,2023-05-10,PETR4, 3.02 ,,13044496930
2023-03-31,not-a-date,PETR4,3.03,1,1
2023-06-30,2023-08-03,PETR4,3.01,NaN,
`)

	facts, err := NewCSVSource(dir, logger.Nop()).LoadFacts(context.Background())
	require.NoError(t, err)
	require.Len(t, facts, 3, "the malformed row is skipped")

	assert.Equal(t, "3.01", facts[0].Account)
	assert.Equal(t, time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC), facts[0].DisclosureDate)
	assert.InDelta(t, 1000.5, facts[0].Value.Float64, 1e-9)
	assert.True(t, facts[0].Shares.Valid)

	assert.Equal(t, "3.02", facts[1].Account)
	assert.False(t, facts[1].Value.Valid)

	assert.False(t, facts[2].Value.Valid)
	assert.False(t, facts[2].Shares.Valid)
}

func TestCSVSource_LoadMarket(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, PricesFile, `date,ticker,open,high,low,close,adjusted_close,volume
2024-01-02,PETR4,37.1,37.9,36.8,37.5,35.2,51000000
2024-01-03,PETR4,37.5,38.0,37.0,37.8,35.5,42000000
`)
	writeFile(t, dir, IndexFile, `date,close
2024-01-02,132697.0
`)
	writeFile(t, dir, CDIFile, `date,return
2024-01-02,0.00043739
`)

	md, err := LoadMarket(context.Background(), NewCSVSource(dir, logger.Nop()))
	require.NoError(t, err)

	require.Len(t, md.Prices, 2)
	assert.Equal(t, "PETR4", md.Prices[1].Ticker)
	assert.InDelta(t, 35.5, md.Prices[1].AdjustedClose, 1e-9)
	assert.InDelta(t, 42000000, md.Prices[1].Volume, 1e-9)

	require.Len(t, md.Index, 1)
	assert.InDelta(t, 132697.0, md.Index[0].Close, 1e-9)

	require.Len(t, md.CDI, 1)
	assert.InDelta(t, 0.00043739, md.CDI[0].Return, 1e-12)
}

func TestCSVSource_MissingFiles(t *testing.T) {
	src := NewCSVSource(t.TempDir(), logger.Nop())

	_, err := src.LoadPrices(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	cdi, err := src.LoadCDI(context.Background())
	assert.NoError(t, err, "cdi.csv is optional")
	assert.Empty(t, cdi)
}

func TestWriteCDI_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "input")
	bars := []contracts.RateBar{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Return: 0.00043739},
	}
	require.NoError(t, WriteCDI(dir, bars))

	loaded, err := NewCSVSource(dir, logger.Nop()).LoadCDI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bars, loaded)
}

// failingCloser buffers writes and fails on Close, like a file whose final
// flush hits a full disk
type failingCloser struct {
	bytes.Buffer
	closed bool
}

func (f *failingCloser) Close() error {
	f.closed = true
	return errors.New("no space left on device")
}

func TestMarshalCSV_ReportsCloseError(t *testing.T) {
	w := &failingCloser{}
	records := []factRecord{{ReportDate: "2020-03-31", DisclosureDate: "2020-05-01", Ticker: "PETR4", Account: "3.01", Value: "10"}}

	err := marshalCSV(w, "facts.csv", records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close facts.csv")
	assert.True(t, w.closed)
	assert.Contains(t, w.String(), "PETR4")
}

func TestWriteFacts_Loadable(t *testing.T) {
	dir := t.TempDir()
	facts := []contracts.StatementFact{
		{
			ReportDate:     time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC),
			DisclosureDate: time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC),
			Ticker:         "PETR4",
			Account:        "3.01",
			Value:          null.FloatFrom(1000.5),
		},
	}
	require.NoError(t, WriteFacts(dir, FactsFile, facts))

	loaded, err := NewCSVSource(dir, logger.Nop()).LoadFacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, facts, loaded)
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(config.PipelineConfig{InputSource: config.SourceCSV, DataDir: "dados"}, nil, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &CSVSource{}, src)

	_, err = NewSource(config.PipelineConfig{InputSource: config.SourcePostgres}, nil, logger.Nop())
	assert.Error(t, err)

	_, err = NewSource(config.PipelineConfig{InputSource: "s3"}, nil, logger.Nop())
	assert.Error(t, err)
}
