package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// ErrClosed is returned by a store used after Close
var ErrClosed = errors.New("store is closed")

// ErrNotFound is returned when a requested table does not exist
var ErrNotFound = errors.New("table not found")

// Sub-directories of the output directory
const (
	IndicatorsDir = "indicators"
	PremiumsDir   = "premiums"
	BacktestsDir  = "backtests"
)

const parallelism = 4

// ParquetStore keeps every output table as a ZSTD compressed parquet file.
// Each file is written to a temporary name and renamed into place.
type ParquetStore struct {
	dir    string
	logger *logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewParquetStore creates the output directory tree under dir
func NewParquetStore(dir string, log *logger.Logger) (*ParquetStore, error) {
	for _, sub := range []string{IndicatorsDir, PremiumsDir, BacktestsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	return &ParquetStore{dir: dir, logger: log.WithComponent("storage")}, nil
}

// SaveIndicator implements contracts.IndicatorStore
func (s *ParquetStore) SaveIndicator(ctx context.Context, series contracts.IndicatorSeries) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	path := filepath.Join(s.dir, IndicatorsDir, series.Name+".parquet")
	if err := writeParquet(path, toIndicatorRecords(series)); err != nil {
		return fmt.Errorf("save indicator %s: %w", series.Name, err)
	}
	s.logger.WithFields(map[string]interface{}{
		"indicator": series.Name,
		"rows":      len(series.Points),
	}).Debug("Indicator saved")
	return nil
}

// LoadIndicator implements contracts.IndicatorStore
func (s *ParquetStore) LoadIndicator(ctx context.Context, name string) (contracts.IndicatorSeries, error) {
	series := contracts.IndicatorSeries{Name: name}
	if err := s.check(ctx); err != nil {
		return series, err
	}

	path := filepath.Join(s.dir, IndicatorsDir, name+".parquet")
	records, err := readParquet[indicatorRecord](path)
	if err != nil {
		return series, fmt.Errorf("load indicator %s: %w", name, err)
	}

	series.Points = make([]contracts.IndicatorPoint, 0, len(records))
	for _, r := range records {
		d, err := contracts.ParseDate(r.Date)
		if err != nil {
			return series, fmt.Errorf("load indicator %s: %w", name, err)
		}
		series.Points = append(series.Points, contracts.IndicatorPoint{
			Date:   d,
			Ticker: r.Ticker,
			Value:  fromOptional(r.Value),
		})
	}
	return series, nil
}

// ListIndicators implements contracts.IndicatorStore
func (s *ParquetStore) ListIndicators(ctx context.Context) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, IndicatorsDir, "*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("list indicators: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".parquet"))
	}
	sort.Strings(names)
	return names, nil
}

// SavePremium implements contracts.PremiumStore
func (s *ParquetStore) SavePremium(ctx context.Context, series contracts.PremiumSeries) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	path := filepath.Join(s.dir, PremiumsDir, PremiumFile(series.Strategy, series.Floor))
	if err := writeParquet(path, toPremiumRecords(series)); err != nil {
		return fmt.Errorf("save premium %s: %w", series.Strategy, err)
	}
	return nil
}

// LoadPremium implements contracts.PremiumStore
func (s *ParquetStore) LoadPremium(ctx context.Context, strategy string, floor float64) (contracts.PremiumSeries, error) {
	series := contracts.PremiumSeries{Strategy: strategy, Floor: floor}
	if err := s.check(ctx); err != nil {
		return series, err
	}

	path := filepath.Join(s.dir, PremiumsDir, PremiumFile(strategy, floor))
	records, err := readParquet[premiumRecord](path)
	if err != nil {
		return series, fmt.Errorf("load premium %s: %w", strategy, err)
	}

	series.Rows = make([]contracts.PremiumRow, 0, len(records))
	for _, r := range records {
		d, err := contracts.ParseDate(r.Date)
		if err != nil {
			return series, fmt.Errorf("load premium %s: %w", strategy, err)
		}
		series.Rows = append(series.Rows, contracts.PremiumRow{
			Date: d, Q1: r.Q1, Q2: r.Q2, Q3: r.Q3, Q4: r.Q4, Universe: r.Universe,
		})
	}
	return series, nil
}

// SaveReport implements contracts.ReportStore
func (s *ParquetStore) SaveReport(ctx context.Context, report contracts.BacktestReport) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	path := filepath.Join(s.dir, BacktestsDir, report.RunID+".parquet")
	if err := writeParquet(path, toBacktestRecords(report)); err != nil {
		return fmt.Errorf("save report %s: %w", report.RunID, err)
	}
	return nil
}

// Close implements contracts.Store. Writes are synchronous, so nothing is
// pending; later calls fail with ErrClosed.
func (s *ParquetStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *ParquetStore) check(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return ctx.Err()
}

// PremiumFile names the table of one (strategy, floor)
func PremiumFile(strategy string, floor float64) string {
	return strategy + "__" + strconv.FormatFloat(floor, 'f', -1, 64) + ".parquet"
}

func writeParquet[T any](path string, records []*T) (err error) {
	tmp := path + ".tmp"
	fw, err := local.NewLocalFileWriter(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(T), parallelism)
	if err != nil {
		fw.Close()
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024 // 128M
	pw.PageSize = 8 * 1024              // 8k
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	for _, r := range records {
		if err := pw.Write(r); err != nil {
			fw.Close()
			return fmt.Errorf("parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func readParquet[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return nil, err
	}

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(T), parallelism)
	if err != nil {
		return nil, fmt.Errorf("parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]T, int(pr.GetNumRows()))
	if len(rows) == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("parquet read: %w", err)
	}
	return rows, nil
}
