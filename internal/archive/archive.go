// Package archive persists tire readings to a DuckDB file so history survives
// the in-memory series cap.
package archive

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"

	"github.com/tpms-dashboard/backend/internal/metrics"
	"github.com/tpms-dashboard/backend/internal/models"
)

// DefaultBatchSize is the number of readings buffered before an Appender flush.
const DefaultBatchSize = 500

// Options configures an Archive.
type Options struct {
	BatchSize   int
	MemoryLimit string // DuckDB memory_limit, e.g. "256MB"
	Threads     int
	Logger      zerolog.Logger
}

// Archive buffers readings and appends them in batches.
type Archive struct {
	db        *sql.DB
	dbPath    string
	batchSize int
	log       zerolog.Logger

	mu        sync.Mutex
	batch     []models.ArchivedReading
	lastError error
}

// Open creates or opens the archive at dbPath. An empty path keeps it in memory.
func Open(dbPath string, o Options) (*Archive, error) {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MemoryLimit == "" {
		o.MemoryLimit = "256MB"
	}
	if o.Threads <= 0 {
		o.Threads = 2
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", o.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", o.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			session_id  VARCHAR NOT NULL,
			tire        INTEGER NOT NULL,
			ts          BIGINT NOT NULL,
			pressure    DOUBLE NOT NULL,
			temperature DOUBLE NOT NULL,
			battery     DOUBLE NOT NULL,
			status      VARCHAR NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Archive{
		db:        db,
		dbPath:    dbPath,
		batchSize: o.BatchSize,
		log:       o.Logger,
		batch:     make([]models.ArchivedReading, 0, o.BatchSize),
	}, nil
}

// Publish archives every row of a completed tick.
func (a *Archive) Publish(update models.TickUpdate) {
	readings := make([]models.ArchivedReading, len(update.Rows))
	for i, row := range update.Rows {
		readings[i] = models.ArchivedReading{
			SessionID:   update.SessionID,
			Tire:        row.Tire,
			Timestamp:   update.At,
			Pressure:    row.Snapshot.Pressure,
			Temperature: row.Snapshot.Temperature,
			Battery:     row.Snapshot.Battery,
			Status:      row.Status,
		}
	}
	if err := a.Record(readings...); err != nil {
		a.log.Error().Err(err).Str("session", update.SessionID).Msg("archive tick")
	}
}

// Record buffers readings, flushing once the batch is full.
func (a *Archive) Record(readings ...models.ArchivedReading) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.batch = append(a.batch, readings...)
	if len(a.batch) < a.batchSize {
		return nil
	}
	return a.flushLocked()
}

// Flush writes buffered readings.
func (a *Archive) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked()
}

// LastError returns the last flush error.
func (a *Archive) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastError
}

func (a *Archive) flushLocked() error {
	if len(a.batch) == 0 {
		return nil
	}
	n := len(a.batch)
	start := time.Now()

	conn, err := a.db.Conn(context.Background())
	if err != nil {
		a.lastError = fmt.Errorf("failed to get connection: %w", err)
		return a.lastError
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "readings")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, r := range a.batch {
			err := appender.AppendRow(
				r.SessionID,
				int32(r.Tire),
				r.Timestamp.UnixMilli(),
				r.Pressure,
				r.Temperature,
				r.Battery,
				string(r.Status),
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		a.lastError = fmt.Errorf("appender error: %w", err)
		metrics.AddArchiveRows(metrics.ResultError, n)
		return a.lastError
	}

	a.batch = a.batch[:0]
	metrics.AddArchiveRows(metrics.ResultSuccess, n)
	a.log.Debug().Int("rows", n).Dur("elapsed", time.Since(start)).Msg("archive batch flushed")
	return nil
}

// Run flushes every interval until ctx is done, then flushes once more.
func (a *Archive) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := a.Flush(); err != nil {
				a.log.Error().Err(err).Msg("final archive flush")
			}
			return
		case <-ticker.C:
			if err := a.Flush(); err != nil {
				a.log.Error().Err(err).Msg("archive flush")
			}
		}
	}
}

// Query returns up to limit of the newest readings of one tire, oldest first.
// Buffered readings are flushed first.
func (a *Archive) Query(ctx context.Context, sessionID string, tire, limit int) ([]models.ArchivedReading, error) {
	if err := a.Flush(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT session_id, tire, ts, pressure, temperature, battery, status FROM (
			SELECT * FROM readings
			WHERE session_id = ? AND tire = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC`, sessionID, tire, limit)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var out []models.ArchivedReading
	for rows.Next() {
		var (
			r      models.ArchivedReading
			ts     int64
			status string
		)
		if err := rows.Scan(&r.SessionID, &r.Tire, &ts, &r.Pressure, &r.Temperature, &r.Battery, &status); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Timestamp = time.UnixMilli(ts)
		r.Status = models.StatusLevel(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored readings of a session.
func (a *Archive) Count(ctx context.Context, sessionID string) (int, error) {
	if err := a.Flush(); err != nil {
		return 0, err
	}
	var n int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM readings WHERE session_id = ?", sessionID).Scan(&n)
	return n, err
}

// DeleteSession drops all readings of a session, including buffered ones.
func (a *Archive) DeleteSession(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	kept := a.batch[:0]
	for _, r := range a.batch {
		if r.SessionID != sessionID {
			kept = append(kept, r)
		}
	}
	a.batch = kept
	a.mu.Unlock()

	_, err := a.db.ExecContext(ctx, "DELETE FROM readings WHERE session_id = ?", sessionID)
	return err
}

// Close flushes and closes the database. The file is kept.
func (a *Archive) Close() error {
	err := a.Flush()
	if a.db != nil {
		a.db.Close()
	}
	return err
}
