package stoploss

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Params are the persisted stop-loss parameters, loaded from a JSON file at
// startup. The evaluator never mutates them; only explicit reconfiguration
// rewrites the file.
type Params struct {
	Enabled              bool               `json:"enabled"`
	CheckIntervalSeconds int                `json:"check_interval"`
	DefaultStopLoss      float64            `json:"default_stop_loss"`
	TrailingStop         float64            `json:"trailing_stop"`
	EmergencyStop        float64            `json:"emergency_stop"`
	TokenStopLoss        map[string]float64 `json:"token_stop_loss"`
	MaxPortfolioLoss     float64            `json:"max_portfolio_loss"`
	EnableTrailingStops  bool               `json:"enable_trailing_stops"`
	EnableEmergencyStops bool               `json:"enable_emergency_stops"`
}

// CheckInterval returns the configured cadence as a duration.
func (p Params) CheckInterval() time.Duration {
	return time.Duration(p.CheckIntervalSeconds) * time.Second
}

// stopFor returns the fixed stop fraction for symbol: the per-token override
// when one exists, the default otherwise.
func (p Params) stopFor(symbol string) float64 {
	if pct, ok := p.TokenStopLoss[symbol]; ok {
		return pct
	}
	return p.DefaultStopLoss
}

// DefaultParams returns the built-in stop-loss parameters, with per-token
// overrides taken from the given map (usually tokens.Registry.StopOverrides).
func DefaultParams(overrides map[string]float64) Params {
	return Params{
		Enabled:              true,
		CheckIntervalSeconds: 300,
		DefaultStopLoss:      0.15,
		TrailingStop:         0.10,
		EmergencyStop:        0.25,
		TokenStopLoss:        overrides,
		MaxPortfolioLoss:     0.20,
		EnableTrailingStops:  true,
		EnableEmergencyStops: true,
	}
}

// LoadParams reads the stop-loss parameters file at path. When the file does
// not exist yet, it writes defaults (with the given per-token overrides) and
// returns them. Any other read or parse failure is an error.
func LoadParams(path string, overrides map[string]float64) (Params, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		params := DefaultParams(overrides)
		if err := SaveParams(path, params); err != nil {
			return Params{}, fmt.Errorf("writing default stop-loss params: %w", err)
		}
		return params, nil
	}
	if err != nil {
		return Params{}, fmt.Errorf("reading stop-loss params: %w", err)
	}

	var params Params
	if err := json.Unmarshal(data, &params); err != nil {
		return Params{}, fmt.Errorf("parsing stop-loss params %s: %w", path, err)
	}
	return params, nil
}

// SaveParams writes the parameters file at path.
func SaveParams(path string, params Params) error {
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
