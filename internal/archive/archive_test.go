// archive_test.go - Tests for the DuckDB reading archive
package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpms-dashboard/backend/internal/models"
)

func createTestArchive(t *testing.T, batchSize int) (*Archive, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readings.duckdb")
	a, err := Open(path, Options{BatchSize: batchSize})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, path
}

func tickUpdate(session string, tick int64, at time.Time, tires int) models.TickUpdate {
	rows := make([]models.LiveRow, tires)
	for i := range rows {
		rows[i] = models.LiveRow{
			Tire:   i + 1,
			Name:   "tire",
			Status: models.StatusNormal,
			Snapshot: models.MetricSnapshot{
				Pressure:    30 + float64(tick),
				Temperature: 20,
				Battery:     90,
			},
		}
	}
	return models.TickUpdate{SessionID: session, Tick: tick, At: at, Rows: rows}
}

func TestOpen(t *testing.T) {
	_, path := createTestArchive(t, 10)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestArchive_PublishAndQuery(t *testing.T) {
	a, _ := createTestArchive(t, 1000)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 5; i++ {
		a.Publish(tickUpdate("s1", i, base.Add(time.Duration(i)*2*time.Second), 6))
	}
	a.Publish(tickUpdate("s2", 1, base, 4))

	n, err := a.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	readings, err := a.Query(ctx, "s1", 2, 3)
	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, 33.0, readings[0].Pressure, "oldest of the newest three")
	assert.Equal(t, 35.0, readings[2].Pressure)
	assert.Equal(t, 2, readings[0].Tire)
	assert.Equal(t, models.StatusNormal, readings[0].Status)
	assert.True(t, readings[2].Timestamp.Equal(base.Add(10*time.Second)))
}

func TestArchive_FlushOnBatchSize(t *testing.T) {
	a, _ := createTestArchive(t, 4)
	a.Publish(tickUpdate("s1", 1, time.Now(), 4))

	a.mu.Lock()
	pending := len(a.batch)
	a.mu.Unlock()
	assert.Zero(t, pending)
	assert.NoError(t, a.LastError())
}

func TestArchive_DeleteSession(t *testing.T) {
	a, _ := createTestArchive(t, 3)
	ctx := context.Background()
	a.Publish(tickUpdate("s1", 1, time.Now(), 4))
	a.Publish(tickUpdate("s2", 1, time.Now(), 2))

	require.NoError(t, a.DeleteSession(ctx, "s1"))

	n, err := a.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = a.Count(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestArchive_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.duckdb")
	a, err := Open(path, Options{})
	require.NoError(t, err)
	a.Publish(tickUpdate("s1", 1, time.Now(), 2))
	require.NoError(t, a.Close())

	b, err := Open(path, Options{})
	require.NoError(t, err)
	defer b.Close()

	n, err := b.Count(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestArchive_Run(t *testing.T) {
	a, _ := createTestArchive(t, 1000)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx, time.Hour)
		close(done)
	}()

	a.Publish(tickUpdate("s1", 1, time.Now(), 2))
	cancel()
	<-done

	a.mu.Lock()
	pending := len(a.batch)
	a.mu.Unlock()
	assert.Zero(t, pending)
}
