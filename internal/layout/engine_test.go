package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpms-dashboard/backend/internal/models"
)

func TestComputePositions_DefaultTruck(t *testing.T) {
	positions := ComputePositions(models.AxleConfig{2, 4}, TruckProfile)
	require.Len(t, positions, 6)

	want := []struct {
		x, y float64
		side models.Side
		ring int
	}{
		{20, 19.5, models.SideTop, 0},
		{20, 68.5, models.SideBottom, 0},
		{70, 19.5, models.SideTop, 0},
		{70, 68.5, models.SideBottom, 0},
		{76, 14.5, models.SideTop, 1},
		{76, 73.5, models.SideBottom, 1},
	}
	for i, w := range want {
		p := positions[i]
		assert.Equal(t, i+1, p.Tire)
		assert.InDelta(t, w.x, p.X, 1e-9, "tire %d x", i+1)
		assert.InDelta(t, w.y, p.Y, 1e-9, "tire %d y", i+1)
		assert.Equal(t, w.side, p.Side, "tire %d side", i+1)
		assert.Equal(t, w.ring, p.Ring, "tire %d ring", i+1)
	}
	assert.Equal(t, 0, positions[1].Axle)
	assert.Equal(t, 1, positions[5].Axle)
}

func TestComputePositions_Compact(t *testing.T) {
	positions := ComputePositions(models.AxleConfig{2, 4}, CompactProfile)
	require.Len(t, positions, 6)

	assert.InDelta(t, 70, positions[4].X, 1e-9)
	assert.InDelta(t, 0.5, positions[4].Y, 1e-9)
	assert.InDelta(t, 84.5, positions[5].Y, 1e-9)
}

func TestComputePositions_AxleSpacing(t *testing.T) {
	positions := ComputePositions(models.AxleConfig{2, 2, 2}, TruckProfile)
	require.Len(t, positions, 6)

	assert.InDelta(t, 20, positions[0].X, 1e-9)
	assert.InDelta(t, 45, positions[2].X, 1e-9)
	assert.InDelta(t, 70, positions[4].X, 1e-9)
}

func TestComputePositions_SingleAxle(t *testing.T) {
	positions := ComputePositions(models.AxleConfig{4}, TruckProfile)
	require.Len(t, positions, 4)

	for _, p := range positions[:2] {
		assert.InDelta(t, 20, p.X, 1e-9)
	}
	for _, p := range positions[2:] {
		assert.InDelta(t, 26, p.X, 1e-9)
	}
}

func TestComputePositions_LengthMatchesTotal(t *testing.T) {
	for _, axles := range []models.AxleConfig{{2}, {2, 4}, {2, 4, 4}, {2, 2, 2, 2, 2, 2, 2, 2}, {16}} {
		positions := ComputePositions(axles, TruckProfile)
		assert.Len(t, positions, axles.TotalTires(), "axles %v", axles)
		for k, p := range positions {
			assert.Equal(t, k+1, p.Tire)
		}
	}
}

func TestComputePositions_AlternatesSides(t *testing.T) {
	positions := ComputePositions(models.AxleConfig{6, 2}, TruckProfile)
	for k, p := range positions {
		if k%2 == 0 {
			assert.Equal(t, models.SideTop, p.Side, "tire %d", p.Tire)
		} else {
			assert.Equal(t, models.SideBottom, p.Side, "tire %d", p.Tire)
		}
	}
	// third ring on the front axle has no x offset
	assert.InDelta(t, 20, positions[4].X, 1e-9)
	assert.InDelta(t, 9.5, positions[4].Y, 1e-9)
}

func TestProfileByName(t *testing.T) {
	p, ok := ProfileByName("")
	assert.True(t, ok)
	assert.Equal(t, TruckProfile, p)

	p, ok = ProfileByName("compact")
	assert.True(t, ok)
	assert.Equal(t, CompactProfile, p)

	_, ok = ProfileByName("bus")
	assert.False(t, ok)
}

func TestPositionNames(t *testing.T) {
	axles := models.AxleConfig{2, 4, 6}
	positions := ComputePositions(axles, TruckProfile)

	expected := []string{
		"Front Top Outer",
		"Front Bottom Outer",
		"Middle 1 Top Outer",
		"Middle 1 Bottom Outer",
		"Middle 1 Top Inner",
		"Middle 1 Bottom Inner",
		"Rear Top Outer",
		"Rear Bottom Outer",
		"Rear Top Inner",
		"Rear Bottom Inner",
		"Rear Top Inner 3",
		"Rear Bottom Inner 3",
	}
	require.Len(t, positions, len(expected))
	for i, name := range expected {
		assert.Equal(t, name, positions[i].Name)
		assert.Equal(t, name, PositionName(axles, i+1))
	}

	assert.Equal(t, "Tire 13", PositionName(axles, 13))
	assert.Equal(t, "Tire 0", PositionName(axles, 0))
}

func TestAxleName_SingleAxle(t *testing.T) {
	assert.Equal(t, "Front", AxleName(0, 1))
}
