package contracts

import "time"

// Direction of a ranking criterion
type Direction string

const (
	Ascending  Direction = "ascending"  // lower value ranks first
	Descending Direction = "descending" // higher value ranks first
)

// Criterion is one indicator used to rank the universe
type Criterion struct {
	Indicator string    `json:"indicator" yaml:"indicator"`
	Direction Direction `json:"direction" yaml:"direction"`
	Weight    float64   `json:"weight" yaml:"weight"`
}

// Strategy is a named factor strategy
type Strategy struct {
	Name     string      `json:"name" yaml:"name"`
	Criteria []Criterion `json:"criteria" yaml:"criteria"`
	Floors   []float64   `json:"liquidity_floors" yaml:"liquidity_floors"`
}

// QuartileMember is one ticker held in a quartile portfolio
type QuartileMember struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Composite float64 `json:"composite"`
}

// PremiumRow is the mean forward return of each quartile at one rebalance date
// ⭐ SSOT: S4 output row
type PremiumRow struct {
	Date     time.Time `json:"date"`
	Q1       float64   `json:"quartile_1"`
	Q2       float64   `json:"quartile_2"`
	Q3       float64   `json:"quartile_3"`
	Q4       float64   `json:"quartile_4"`
	Universe float64   `json:"universe"`
}

// PremiumSeries is the premium table of one (strategy, floor)
type PremiumSeries struct {
	Strategy string       `json:"strategy"`
	Floor    float64      `json:"liquidity_floor"`
	Rows     []PremiumRow `json:"rows"`
}
