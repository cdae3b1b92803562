// Package simulator produces synthetic tire readings.
package simulator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tpms-dashboard/backend/internal/models"
)

// Mode selects how readings are generated.
type Mode string

const (
	// ModeDrift jitters around a per-tire baseline.
	ModeDrift Mode = "drift"
	// ModeUniform draws independent values across the sidebar data view ranges.
	ModeUniform Mode = "uniform"
)

// ParseMode accepts "drift", "uniform" or "" (drift).
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeDrift:
		return ModeDrift, nil
	case ModeUniform:
		return ModeUniform, nil
	default:
		return "", fmt.Errorf("unknown simulation mode %q", s)
	}
}

// Sink receives generated updates. *telemetry.Store satisfies it.
type Sink interface {
	Update(tire int, m models.MetricUpdate)
}

// Generator is safe for concurrent use.
type Generator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	mode Mode
}

// New returns a deterministic generator for seed.
func New(seed uint64, mode Mode) *Generator {
	if mode == "" {
		mode = ModeDrift
	}
	return &Generator{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		mode: mode,
	}
}

// NewRandom returns a generator seeded from the clock.
func NewRandom(mode Mode) *Generator {
	return New(uint64(time.Now().UnixNano()), mode)
}

// Mode returns the generation mode.
func (g *Generator) Mode() Mode {
	return g.mode
}

// Seed returns a starting snapshot for tire.
func (g *Generator) Seed(tire int) models.MetricSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	return models.MetricSnapshot{
		Pressure:    35 + g.rng.Float64()*10,
		Temperature: 20 + g.rng.Float64()*15,
		Battery:     60 + g.rng.Float64()*30,
	}
}

// Next returns one full reading for tire.
func (g *Generator) Next(tire int) models.MetricUpdate {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.mode == ModeUniform {
		return models.FullUpdate(
			round(g.rng.Float64()*20+20, 2),
			round(g.rng.Float64()*40+5, 2),
			math.Round(g.rng.Float64()*100),
		)
	}

	basePressure := 35 + float64(tire%3)*5
	baseTemp := 20 + float64(tire%2)*5
	baseBattery := 60 + float64(tire%4)*5

	return models.FullUpdate(
		basePressure+(g.rng.Float64()-0.5)*8,
		baseTemp+(g.rng.Float64()-0.5)*10,
		clamp(baseBattery+(g.rng.Float64()-0.5)*20, 0, 100),
	)
}

// Tick writes one reading for every tire 1..tireCount.
func (g *Generator) Tick(sink Sink, tireCount int) {
	for i := 1; i <= tireCount; i++ {
		sink.Update(i, g.Next(i))
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
