// Package layout turns axle configurations into tire positions for the top-view schematic.
package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tpms-dashboard/backend/internal/models"
)

var (
	ErrEmptyConfig       = errors.New("axle configuration is empty")
	ErrInvalidAxle       = errors.New("each axle must have an even number of tires")
	ErrTireCountRange    = errors.New("total tire count out of range")
	ErrTireCountMismatch = errors.New("configuration total does not match number of tyres")
)

// DefaultAxles is used when no configuration is supplied.
var DefaultAxles = models.AxleConfig{2, 4}

// Limits bounds the accepted total tire count.
type Limits struct {
	MinTires int
	MaxTires int
}

// DefaultLimits returns the [2,16] tire range.
func DefaultLimits() Limits {
	return Limits{MinTires: 2, MaxTires: 16}
}

// ParseAxleConfig parses a comma separated list such as "2, 4".
// Blank items are skipped; every remaining item must be a positive even integer.
func ParseAxleConfig(raw string) (models.AxleConfig, error) {
	parts := strings.Split(raw, ",")
	axles := make(models.AxleConfig, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("axle %d (%q): %w", len(axles)+1, part, ErrInvalidAxle)
		}
		if n <= 0 || n%2 != 0 {
			return nil, fmt.Errorf("axle %d has %d tires: %w", len(axles)+1, n, ErrInvalidAxle)
		}
		axles = append(axles, n)
	}
	if len(axles) == 0 {
		return nil, ErrEmptyConfig
	}
	return axles, nil
}

// Validate checks axle entries and the total against limits.
func Validate(axles models.AxleConfig, limits Limits) error {
	if len(axles) == 0 {
		return ErrEmptyConfig
	}
	for i, n := range axles {
		if n <= 0 || n%2 != 0 {
			return fmt.Errorf("axle %d has %d tires: %w", i+1, n, ErrInvalidAxle)
		}
	}
	total := axles.TotalTires()
	if total < limits.MinTires || total > limits.MaxTires {
		return fmt.Errorf("%d tires, want %d-%d: %w", total, limits.MinTires, limits.MaxTires, ErrTireCountRange)
	}
	return nil
}

// ValidateTireCount checks that the declared number of tyres equals the configuration total.
func ValidateTireCount(axles models.AxleConfig, declared int) error {
	if total := axles.TotalTires(); total != declared {
		return fmt.Errorf("number of tyres %d, configuration total %d: %w", declared, total, ErrTireCountMismatch)
	}
	return nil
}

// Accept parses and validates raw. A declared count of zero skips the mismatch check.
func Accept(raw string, declared int, limits Limits) (models.AxleConfig, error) {
	axles, err := ParseAxleConfig(raw)
	if err != nil {
		return nil, err
	}
	if declared > 0 {
		if err := ValidateTireCount(axles, declared); err != nil {
			return nil, err
		}
	}
	if err := Validate(axles, limits); err != nil {
		return nil, err
	}
	return axles, nil
}

// DefaultAxlesFor derives a configuration for a bare tire count:
// the default layout when the totals agree, otherwise one axle of two per pair.
func DefaultAxlesFor(tireCount int) models.AxleConfig {
	if tireCount == DefaultAxles.TotalTires() {
		return append(models.AxleConfig(nil), DefaultAxles...)
	}
	if tireCount <= 0 || tireCount%2 != 0 {
		return nil
	}
	axles := make(models.AxleConfig, tireCount/2)
	for i := range axles {
		axles[i] = 2
	}
	return axles
}

// String formats axles the way they are entered, e.g. "2,4".
func String(axles models.AxleConfig) string {
	parts := make([]string, len(axles))
	for i, n := range axles {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
