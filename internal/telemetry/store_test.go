package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpms-dashboard/backend/internal/models"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(opts ...Option) *Store {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return NewStore(append([]Option{WithClock(clock.now)}, opts...)...)
}

func pressure(v float64) models.MetricUpdate {
	return models.MetricUpdate{Pressure: &v}
}

func TestStore_Uninitialized(t *testing.T) {
	s := newTestStore()
	assert.False(t, s.Initialized())
	assert.Equal(t, 0, s.TireCount())

	_, ok := s.Snapshot(1)
	assert.False(t, ok)

	s.Update(1, pressure(30))
	assert.Empty(t, s.Series(models.MetricPressure, 1))
}

func TestStore_ResetAllocatesSnapshots(t *testing.T) {
	s := newTestStore()
	s.Reset(6)

	assert.True(t, s.Initialized())
	assert.Equal(t, 6, s.TireCount())
	for i := 1; i <= 6; i++ {
		snap, ok := s.Snapshot(i)
		require.True(t, ok, "tire %d", i)
		assert.False(t, snap.UpdatedAt.IsZero())
	}

	for _, i := range []int{0, 7, -1} {
		_, ok := s.Snapshot(i)
		assert.False(t, ok, "tire %d", i)
	}
}

func TestStore_ResetWithSeeder(t *testing.T) {
	s := newTestStore(WithSeeder(func(tire int) models.MetricSnapshot {
		return models.MetricSnapshot{Pressure: float64(30 + tire), Temperature: 20, Battery: 90}
	}))
	s.Reset(2)

	snap, ok := s.Snapshot(2)
	require.True(t, ok)
	assert.Equal(t, 32.0, snap.Pressure)
	assert.Equal(t, 20.0, snap.Temperature)
	assert.Equal(t, 90.0, snap.Battery)
	assert.Empty(t, s.Series(models.MetricPressure, 2))
}

func TestStore_PartialUpdate(t *testing.T) {
	s := newTestStore()
	s.Reset(4)
	s.Update(2, models.FullUpdate(30, 25, 80))

	before := len(s.Series(models.MetricPressure, 2))
	tempBefore := s.Series(models.MetricTemperature, 2)

	s.Update(2, pressure(33.0))

	series := s.Series(models.MetricPressure, 2)
	require.Len(t, series, before+1)
	assert.Equal(t, 33.0, series[len(series)-1].Value)
	assert.Equal(t, tempBefore, s.Series(models.MetricTemperature, 2))

	snap, _ := s.Snapshot(2)
	assert.Equal(t, 33.0, snap.Pressure)
	assert.Equal(t, 25.0, snap.Temperature)
	assert.Equal(t, 80.0, snap.Battery)
}

func TestStore_EmptyUpdateKeepsTimestamp(t *testing.T) {
	s := newTestStore()
	s.Reset(1)
	before, _ := s.Snapshot(1)

	s.Update(1, models.MetricUpdate{})

	after, _ := s.Snapshot(1)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestStore_OutOfRangeUpdateIgnored(t *testing.T) {
	s := newTestStore()
	s.Reset(2)

	s.Update(3, pressure(50))
	s.Update(0, pressure(50))

	for i := 1; i <= 2; i++ {
		assert.Empty(t, s.Series(models.MetricPressure, i))
	}
	assert.Nil(t, s.Series(models.MetricPressure, 3))
}

func TestStore_EvictsOldest(t *testing.T) {
	s := newTestStore()
	s.Reset(1)

	for i := 1; i <= 51; i++ {
		s.Update(1, pressure(float64(i)))
	}

	series := s.Series(models.MetricPressure, 1)
	require.Len(t, series, DefaultHistoryPoints)
	for i, p := range series {
		assert.Equal(t, float64(i+2), p.Value)
	}
}

func TestStore_CustomHistoryPoints(t *testing.T) {
	s := newTestStore(WithHistoryPoints(3))
	s.Reset(1)
	for i := 1; i <= 5; i++ {
		s.Update(1, pressure(float64(i)))
	}

	series := s.Series(models.MetricPressure, 1)
	require.Len(t, series, 3)
	assert.Equal(t, []float64{3, 4, 5}, []float64{series[0].Value, series[1].Value, series[2].Value})
	assert.Equal(t, 3, s.HistoryPoints())
}

func TestStore_Labels(t *testing.T) {
	s := newTestStore()
	s.Reset(1)
	s.Update(1, pressure(30))

	series := s.Series(models.MetricPressure, 1)
	require.Len(t, series, 1)
	assert.Equal(t, "9:00:02 AM", series[0].Label)
}

func TestStore_ResetClearsHistory(t *testing.T) {
	s := newTestStore()
	s.Reset(2)
	s.Update(1, models.FullUpdate(30, 25, 80))

	s.Reset(4)

	assert.Equal(t, 4, s.TireCount())
	for _, kind := range models.MetricKinds {
		assert.Empty(t, s.Series(kind, 1), "kind %s", kind)
	}
}

func TestStore_SeriesIsCopy(t *testing.T) {
	s := newTestStore()
	s.Reset(1)
	s.Update(1, pressure(30))

	series := s.Series(models.MetricPressure, 1)
	series[0].Value = 99

	assert.Equal(t, 30.0, s.Series(models.MetricPressure, 1)[0].Value)
	assert.Nil(t, s.Series(models.MetricKind("humidity"), 1))
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s := NewStore()
	s.Reset(8)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Update(i%8+1, models.FullUpdate(30, 20, float64(w)))
				_ = s.Snapshots()
				_ = s.Series(models.MetricBattery, i%8+1)
			}
		}(w)
	}
	wg.Wait()

	for i := 1; i <= 8; i++ {
		assert.LessOrEqual(t, len(s.Series(models.MetricBattery, i)), DefaultHistoryPoints, fmt.Sprintf("tire %d", i))
	}
}
