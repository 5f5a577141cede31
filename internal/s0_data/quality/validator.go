package quality

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// Coverage keys
const (
	CoveragePrice        = "price"
	CoverageVolume       = "volume"
	CoverageFundamentals = "fundamentals"
	CoverageIndex        = "index"
	CoverageCDI          = "cdi"
)

// QualityGate checks input coverage before the statement stage runs
type QualityGate struct {
	config Config
	logger *logger.Logger
}

// Config holds quality gate thresholds
type Config struct {
	MinPriceCoverage        float64 `yaml:"min_price_coverage"`        // 0.90
	MinFundamentalsCoverage float64 `yaml:"min_fundamentals_coverage"` // 0.50
	MinIndexCoverage        float64 `yaml:"min_index_coverage"`        // 0.95
	MinScore                float64 `yaml:"min_score"`                 // 0.50
}

// DefaultConfig returns the default thresholds
func DefaultConfig() Config {
	return Config{
		MinPriceCoverage:        0.90,
		MinFundamentalsCoverage: 0.50,
		MinIndexCoverage:        0.95,
		MinScore:                0.50,
	}
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config, log *logger.Logger) *QualityGate {
	return &QualityGate{
		config: config,
		logger: log.WithComponent("s0_quality"),
	}
}

// Check measures coverage on the latest price date
// ⭐ SSOT: S0 → S1 quality check
func (g *QualityGate) Check(facts []contracts.StatementFact, md contracts.MarketData) *contracts.DataQualitySnapshot {
	snapshot := &contracts.DataQualitySnapshot{
		Coverage: make(map[string]float64),
	}

	tickers := make(map[string]bool)
	dates := make(map[time.Time]bool)
	var latest time.Time
	for _, b := range md.Prices {
		d := contracts.Day(b.Date)
		tickers[b.Ticker] = true
		dates[d] = true
		if d.After(latest) {
			latest = d
		}
	}
	snapshot.Date = latest
	snapshot.TotalTickers = len(tickers)

	if len(tickers) == 0 {
		snapshot.Warnings = append(snapshot.Warnings, "no price data")
		return snapshot
	}

	// 1. price and volume on the latest date
	priced := make(map[string]bool)
	traded := 0
	for _, b := range md.Prices {
		if !contracts.Day(b.Date).Equal(latest) {
			continue
		}
		priced[b.Ticker] = true
		if b.Volume > 0 {
			traded++
		}
	}
	snapshot.Coverage[CoveragePrice] = ratio(len(priced), len(tickers))
	snapshot.Coverage[CoverageVolume] = ratio(traded, len(priced))

	// 2. fundamentals per priced ticker
	filed := make(map[string]bool)
	for _, f := range facts {
		filed[f.Ticker] = true
	}
	withFacts, valid := 0, 0
	for t := range tickers {
		if filed[t] {
			withFacts++
			if priced[t] {
				valid++
			}
		}
	}
	snapshot.Coverage[CoverageFundamentals] = ratio(withFacts, len(tickers))
	snapshot.ValidTickers = valid

	// 3. index and CDI per trading date
	indexed := make(map[time.Time]bool, len(md.Index))
	for _, b := range md.Index {
		indexed[contracts.Day(b.Date)] = true
	}
	firstCDI := time.Time{}
	for _, r := range md.CDI {
		d := contracts.Day(r.Date)
		if firstCDI.IsZero() || d.Before(firstCDI) {
			firstCDI = d
		}
	}
	withIndex, withCDI := 0, 0
	for d := range dates {
		if indexed[d] {
			withIndex++
		}
		if !firstCDI.IsZero() && !d.Before(firstCDI) {
			withCDI++
		}
	}
	snapshot.Coverage[CoverageIndex] = ratio(withIndex, len(dates))
	snapshot.Coverage[CoverageCDI] = ratio(withCDI, len(dates))

	snapshot.QualityScore = g.calculateScore(snapshot.Coverage)
	snapshot.Warnings = g.thresholdWarnings(snapshot)
	snapshot.Passed = snapshot.IsValid() && snapshot.QualityScore >= g.config.MinScore && len(snapshot.Warnings) == 0

	g.logger.WithFields(map[string]interface{}{
		"date":          contracts.FormatDate(snapshot.Date),
		"total_tickers": snapshot.TotalTickers,
		"valid_tickers": snapshot.ValidTickers,
		"score":         snapshot.QualityScore,
		"passed":        snapshot.Passed,
	}).Info("Input quality checked")

	return snapshot
}

func (g *QualityGate) thresholdWarnings(s *contracts.DataQualitySnapshot) []string {
	checks := map[string]float64{
		CoveragePrice:        g.config.MinPriceCoverage,
		CoverageFundamentals: g.config.MinFundamentalsCoverage,
		CoverageIndex:        g.config.MinIndexCoverage,
	}
	keys := make([]string, 0, len(checks))
	for k := range checks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var warnings []string
	for _, k := range keys {
		if s.Coverage[k] < checks[k] {
			warnings = append(warnings, fmt.Sprintf("%s coverage %.2f below %.2f", k, s.Coverage[k], checks[k]))
		}
	}
	return warnings
}

// calculateScore calculates overall quality score using weighted average
func (g *QualityGate) calculateScore(coverage map[string]float64) float64 {
	// weights sum to 1.0
	weights := map[string]float64{
		CoveragePrice:        0.30,
		CoverageVolume:       0.20,
		CoverageFundamentals: 0.30,
		CoverageIndex:        0.10,
		CoverageCDI:          0.10,
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}

	return score
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
