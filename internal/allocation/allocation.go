// Package allocation persists the target portfolio allocation as a flat JSON
// object (symbol → weight). The file is read at startup and rewritten when
// the risk-adjustment pass changes targets; serialization is round-trip
// stable.
package allocation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"

	"driftguard/internal/domain"
)

// sumTolerance is how far the weight sum may drift from 1 before a warning.
const sumTolerance = 0.01

// LoadTargets reads the allocation file at path. When the file does not
// exist yet, the provided defaults are written and returned. Weights that do
// not sum to ~1 are allowed (the planner normalizes nothing) but logged as a
// warning. A file that exists but cannot be parsed is an error: malformed
// configuration at startup is fatal.
func LoadTargets(path string, defaults domain.TargetAllocation, log *slog.Logger) (domain.TargetAllocation, error) {
	if log == nil {
		log = slog.Default()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := SaveTargets(path, defaults); err != nil {
			return nil, fmt.Errorf("writing default targets: %w", err)
		}
		log.Info("wrote default target allocation", "path", path, "symbols", len(defaults))
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading targets: %w", err)
	}

	var targets domain.TargetAllocation
	if err := json.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("parsing targets %s: %w", path, err)
	}

	if sum := targets.WeightSum(); math.Abs(sum-1) > sumTolerance {
		log.Warn("target weights deviate from 1", "sum", sum, "path", path)
	}
	return targets, nil
}

// SaveTargets writes the allocation file at path.
func SaveTargets(path string, targets domain.TargetAllocation) error {
	data, err := json.MarshalIndent(targets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
