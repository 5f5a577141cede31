package storage

import (
	"math"

	"github.com/guregu/null/v6"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

// indicatorRecord is one parquet row of an indicator table
type indicatorRecord struct {
	Date   string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Ticker string   `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Value  *float64 `parquet:"name=value, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// premiumRecord is one parquet row of a premium table
type premiumRecord struct {
	Date     string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Q1       float64 `parquet:"name=quartile_1, type=DOUBLE"`
	Q2       float64 `parquet:"name=quartile_2, type=DOUBLE"`
	Q3       float64 `parquet:"name=quartile_3, type=DOUBLE"`
	Q4       float64 `parquet:"name=quartile_4, type=DOUBLE"`
	Universe float64 `parquet:"name=universe, type=DOUBLE"`
}

// backtestRecord is one parquet row of a backtest report
type backtestRecord struct {
	RunID         string   `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Model         string   `parquet:"name=model, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Ticker        string   `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	TestStart     string   `parquet:"name=test_window_start, type=BYTE_ARRAY, convertedtype=UTF8"`
	TestEnd       string   `parquet:"name=test_window_end, type=BYTE_ARRAY, convertedtype=UTF8"`
	TrainAccuracy float64  `parquet:"name=train_accuracy, type=DOUBLE"`
	Accuracy      float64  `parquet:"name=classification_accuracy, type=DOUBLE"`
	MAE           *float64 `parquet:"name=mae, type=DOUBLE, repetitiontype=OPTIONAL"`
	RMSE          *float64 `parquet:"name=rmse, type=DOUBLE, repetitiontype=OPTIONAL"`
	Samples       int64    `parquet:"name=samples, type=INT64"`
}

// optional maps a null or non-finite value to a parquet null
func optional(v null.Float) *float64 {
	if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return nil
	}
	f := v.Float64
	return &f
}

func fromOptional(p *float64) null.Float {
	if p == nil {
		return null.Float{}
	}
	return null.FloatFrom(*p)
}

func toIndicatorRecords(series contracts.IndicatorSeries) []*indicatorRecord {
	out := make([]*indicatorRecord, 0, len(series.Points))
	for _, p := range series.Points {
		out = append(out, &indicatorRecord{
			Date:   contracts.FormatDate(p.Date),
			Ticker: p.Ticker,
			Value:  optional(p.Value),
		})
	}
	return out
}

func toPremiumRecords(series contracts.PremiumSeries) []*premiumRecord {
	out := make([]*premiumRecord, 0, len(series.Rows))
	for _, r := range series.Rows {
		out = append(out, &premiumRecord{
			Date:     contracts.FormatDate(r.Date),
			Q1:       r.Q1,
			Q2:       r.Q2,
			Q3:       r.Q3,
			Q4:       r.Q4,
			Universe: r.Universe,
		})
	}
	return out
}

func toBacktestRecords(report contracts.BacktestReport) []*backtestRecord {
	out := make([]*backtestRecord, 0, len(report.Rows))
	for _, r := range report.Rows {
		out = append(out, &backtestRecord{
			RunID:         report.RunID,
			Model:         report.Model,
			Ticker:        r.Ticker,
			TestStart:     contracts.FormatDate(r.TestStart),
			TestEnd:       contracts.FormatDate(r.TestEnd),
			TrainAccuracy: r.TrainAccuracy,
			Accuracy:      r.Accuracy,
			MAE:           optional(r.MAE),
			RMSE:          optional(r.RMSE),
			Samples:       int64(r.Samples),
		})
	}
	return out
}
