package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML file and returns the Config with its raw bytes.
// Unknown fields fail the load so that typos never pass silently.
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes and validates a YAML document. Omitted sections keep
// their defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for omitted fields
func Default() *Config {
	return &Config{
		Meta: Meta{ConfigID: "default", Version: "1"},
		Technical: Technical{
			VolumeWindow:   21,
			MomentumMonths: []int{1, 6, 12},
			VolWindow:      252,
			ShortMA:        7,
			LongMA:         40,
			RSIPeriod:      14,
			BetaWindow:     252,
		},
		Premium: Premium{
			VolumeIndicator: "median_volume_21",
			GraceMonths:     2,
		},
		WalkForward: WalkForward{
			Model:       "logistic",
			Mode:        "fixed",
			Window:      "expanding",
			TrainDays:   730,
			HoldoutDays: 365,
			StepDays:    30,
			TestDays:    30,
			Horizon:     21,
			Lookback:    21,
		},
	}
}

// Hash generates a SHA256 hash of the Config (canonical JSON)
// Structs, not maps, keep the field order stable.
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// RunSnapshot ties a run to the exact configuration it used
type RunSnapshot struct {
	RunID      string    `json:"run_id"`
	ConfigID   string    `json:"config_id"`
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRunSnapshot creates the snapshot of one run
func NewRunSnapshot(cfg *Config, yamlData []byte, runID string) (*RunSnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &RunSnapshot{
		RunID:      runID,
		ConfigID:   cfg.Meta.ConfigID,
		ConfigHash: hash,
		ConfigYAML: string(yamlData),
		CreatedAt:  time.Now().UTC(),
	}, nil
}
