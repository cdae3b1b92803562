// Package mirror copies live tire readings into Redis for external consumers.
package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tpms-dashboard/backend/internal/metrics"
	"github.com/tpms-dashboard/backend/internal/models"
)

// Config holds the Redis connection and retention settings.
type Config struct {
	Enabled       bool
	Addr          string
	Password      string
	DB            int
	Prefix        string
	HistoryLength int           // entries kept per tire history set
	TTL           time.Duration // expiry of latest-value keys, 0 keeps them
	Timeout       time.Duration // per pipeline execution
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "tpms"
	}
	if c.HistoryLength <= 0 {
		c.HistoryLength = 1000
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	return c
}

// Reading is the msgpack payload stored per tire.
type Reading struct {
	Tire        int                `msgpack:"tire"`
	Pressure    float64            `msgpack:"p"`
	Temperature float64            `msgpack:"t"`
	Battery     float64            `msgpack:"b"`
	Status      models.StatusLevel `msgpack:"s"`
	At          int64              `msgpack:"at"` // unix millis
}

// Mirror writes tick updates with one pipeline per tick. A disabled mirror is a no-op.
type Mirror struct {
	client *redis.Client
	cfg    Config
	log    zerolog.Logger

	mu        sync.Mutex
	connected bool
}

// New builds a mirror. No connection is made until Connect.
func New(cfg Config, log zerolog.Logger) *Mirror {
	cfg = cfg.withDefaults()
	m := &Mirror{cfg: cfg, log: log}
	if !cfg.Enabled {
		return m
	}
	m.client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return m
}

// Enabled reports whether the mirror was configured on.
func (m *Mirror) Enabled() bool {
	return m.cfg.Enabled && m.client != nil
}

// Connect pings the server.
func (m *Mirror) Connect(ctx context.Context) error {
	if !m.Enabled() {
		return fmt.Errorf("redis mirror disabled")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := m.client.Ping(ctx).Result(); err != nil {
		m.setConnected(false)
		return fmt.Errorf("connect to redis at %s: %w", m.cfg.Addr, err)
	}
	m.setConnected(true)
	m.log.Info().Str("addr", m.cfg.Addr).Msg("redis mirror connected")
	return nil
}

func (m *Mirror) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

// Connected reports the result of the last Connect or write.
func (m *Mirror) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// LatestKey is the key of a tire's latest reading.
func (m *Mirror) LatestKey(sessionID string, tire int) string {
	return fmt.Sprintf("%s:session:%s:tire:%d", m.cfg.Prefix, sessionID, tire)
}

// HistoryKey is the sorted set of a tire's readings scored by time.
func (m *Mirror) HistoryKey(sessionID string, tire int) string {
	return m.LatestKey(sessionID, tire) + ":history"
}

// Channel is the pub/sub channel tick notifications are sent on.
func (m *Mirror) Channel() string {
	return m.cfg.Prefix + ":ticks"
}

// Encode builds the per-tire payloads of an update.
func Encode(update models.TickUpdate) ([]Reading, [][]byte, error) {
	at := update.At.UnixMilli()
	readings := make([]Reading, len(update.Rows))
	payloads := make([][]byte, len(update.Rows))
	for i, row := range update.Rows {
		readings[i] = Reading{
			Tire:        row.Tire,
			Pressure:    row.Snapshot.Pressure,
			Temperature: row.Snapshot.Temperature,
			Battery:     row.Snapshot.Battery,
			Status:      row.Status,
			At:          at,
		}
		b, err := msgpack.Marshal(&readings[i])
		if err != nil {
			return nil, nil, fmt.Errorf("encode tire %d: %w", row.Tire, err)
		}
		payloads[i] = b
	}
	return readings, payloads, nil
}

// Publish mirrors one tick. Errors are logged, never returned.
func (m *Mirror) Publish(update models.TickUpdate) {
	if !m.Enabled() {
		return
	}
	if err := m.Write(context.Background(), update); err != nil {
		m.log.Warn().Err(err).Str("session", update.SessionID).Msg("redis mirror write")
	}
}

// Write stores latest values and appends trimmed history in one pipeline.
func (m *Mirror) Write(ctx context.Context, update models.TickUpdate) error {
	if !m.Enabled() {
		return nil
	}
	readings, payloads, err := Encode(update)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	pipe := m.client.Pipeline()
	for i, r := range readings {
		pipe.Set(ctx, m.LatestKey(update.SessionID, r.Tire), payloads[i], m.cfg.TTL)

		histKey := m.HistoryKey(update.SessionID, r.Tire)
		pipe.ZAdd(ctx, histKey, &redis.Z{
			Score:  float64(r.At),
			Member: payloads[i],
		})
		pipe.ZRemRangeByRank(ctx, histKey, 0, int64(-m.cfg.HistoryLength-1))
	}
	pipe.Publish(ctx, m.Channel(), fmt.Sprintf("%s:%d", update.SessionID, update.Tick))

	if _, err := pipe.Exec(ctx); err != nil {
		m.setConnected(false)
		metrics.IncMirrorWrite(metrics.ResultError)
		return fmt.Errorf("redis pipeline: %w", err)
	}
	m.setConnected(true)
	metrics.IncMirrorWrite(metrics.ResultSuccess)
	return nil
}

// Latest reads back a tire's latest reading.
func (m *Mirror) Latest(ctx context.Context, sessionID string, tire int) (Reading, error) {
	if !m.Enabled() {
		return Reading{}, fmt.Errorf("redis mirror disabled")
	}
	b, err := m.client.Get(ctx, m.LatestKey(sessionID, tire)).Bytes()
	if err != nil {
		return Reading{}, err
	}
	var r Reading
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return Reading{}, fmt.Errorf("decode reading: %w", err)
	}
	return r, nil
}

// DeleteSession removes the keys of a closed session.
func (m *Mirror) DeleteSession(ctx context.Context, sessionID string, tires int) error {
	if !m.Enabled() || tires <= 0 {
		return nil
	}
	keys := make([]string, 0, tires*2)
	for tire := 1; tire <= tires; tire++ {
		keys = append(keys, m.LatestKey(sessionID, tire), m.HistoryKey(sessionID, tire))
	}
	return m.client.Del(ctx, keys...).Err()
}

// Close closes the client.
func (m *Mirror) Close() error {
	if m.client == nil {
		return nil
	}
	if err := m.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	m.setConnected(false)
	return nil
}
