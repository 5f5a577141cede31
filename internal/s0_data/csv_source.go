package s0_data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// CSVSource reads the run inputs from a directory of CSV files
type CSVSource struct {
	dir    string
	logger *logger.Logger
}

// NewCSVSource creates a CSV source rooted at dir
func NewCSVSource(dir string, log *logger.Logger) *CSVSource {
	return &CSVSource{dir: dir, logger: log.WithComponent("s0_data")}
}

// LoadFacts implements contracts.FactSource. Malformed rows are skipped.
func (s *CSVSource) LoadFacts(ctx context.Context) ([]contracts.StatementFact, error) {
	var records []*factRecord
	if err := s.read(FactsFile, &records); err != nil {
		return nil, err
	}

	facts := make([]contracts.StatementFact, 0, len(records))
	for i, r := range records {
		f, err := r.toFact()
		if err != nil {
			s.skip(FactsFile, i, err)
			continue
		}
		facts = append(facts, f)
	}
	return facts, ctx.Err()
}

// LoadPrices implements contracts.MarketSource
func (s *CSVSource) LoadPrices(ctx context.Context) ([]contracts.PriceBar, error) {
	var records []*priceRecord
	if err := s.read(PricesFile, &records); err != nil {
		return nil, err
	}

	bars := make([]contracts.PriceBar, 0, len(records))
	for i, r := range records {
		b, err := r.toBar()
		if err != nil {
			s.skip(PricesFile, i, err)
			continue
		}
		bars = append(bars, b)
	}
	return bars, ctx.Err()
}

// LoadIndex implements contracts.MarketSource
func (s *CSVSource) LoadIndex(ctx context.Context) ([]contracts.IndexBar, error) {
	var records []*indexRecord
	if err := s.read(IndexFile, &records); err != nil {
		return nil, err
	}

	bars := make([]contracts.IndexBar, 0, len(records))
	for i, r := range records {
		d, err := contracts.ParseDate(r.Date)
		if err != nil {
			s.skip(IndexFile, i, err)
			continue
		}
		bars = append(bars, contracts.IndexBar{Date: d, Close: r.Close})
	}
	return bars, ctx.Err()
}

// LoadCDI implements contracts.MarketSource. A missing cdi.csv yields no
// rates; the dependent outputs are then empty.
func (s *CSVSource) LoadCDI(ctx context.Context) ([]contracts.RateBar, error) {
	var records []*rateRecord
	if err := s.read(CDIFile, &records); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.WarnOnce("missing_input:"+CDIFile, "cdi.csv not found, run fetch-cdi to download it")
			return nil, nil
		}
		return nil, err
	}

	bars := make([]contracts.RateBar, 0, len(records))
	for i, r := range records {
		d, err := contracts.ParseDate(r.Date)
		if err != nil {
			s.skip(CDIFile, i, err)
			continue
		}
		bars = append(bars, contracts.RateBar{Date: d, Return: r.Return})
	}
	return bars, ctx.Err()
}

// Close implements contracts.Source
func (s *CSVSource) Close() error {
	return nil
}

func (s *CSVSource) read(name string, out interface{}) error {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (s *CSVSource) skip(file string, row int, err error) {
	s.logger.WithFields(map[string]interface{}{
		"file": file,
		"row":  row + 2, // header is line 1
	}).WithError(err).Warn("Skipping malformed row")
}

// WriteCDI replaces cdi.csv in dir with bars
func WriteCDI(dir string, bars []contracts.RateBar) error {
	records := make([]*rateRecord, 0, len(bars))
	for _, b := range bars {
		records = append(records, &rateRecord{Date: contracts.FormatDate(b.Date), Return: b.Return})
	}
	return writeCSV(dir, CDIFile, &records)
}

// WriteFacts writes facts in the facts.csv layout to dir/name
func WriteFacts(dir, name string, facts []contracts.StatementFact) error {
	records := make([]*factRecord, 0, len(facts))
	for _, f := range facts {
		records = append(records, fromFact(f))
	}
	return writeCSV(dir, name, &records)
}

func writeCSV(dir, name string, records interface{}) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return marshalCSV(f, path, records)
}

// marshalCSV writes records to w and closes it. A failed close is reported
// since buffered data may not have reached the file.
func marshalCSV(w io.WriteCloser, path string, records interface{}) (err error) {
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
