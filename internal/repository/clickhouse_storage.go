package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"SessionPulse/internal/domain/models"
	pkgch "SessionPulse/pkg/clickhouse"
	applogger "SessionPulse/pkg/logger"
	"SessionPulse/pkg/util"
)

// CHStorage implements repository.Storage backed by ClickHouse.
type CHStorage struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

func NewCHStorage(ch *pkgch.Client, l *applogger.Logger) *CHStorage {
	return &CHStorage{client: ch, db: ch.DB(), l: l}
}

var schema = []string{
	`CREATE DATABASE IF NOT EXISTS sessionpulse`,
	`CREATE TABLE IF NOT EXISTS sessionpulse.candles (
        symbol        LowCardinality(String),
        timeframe     LowCardinality(String),
        ts            DateTime64(3, 'UTC'),
        open          Float64,
        high          Float64,
        low           Float64,
        close         Float64,
        volume        Int64,
        session_name  LowCardinality(String),
        data_source   LowCardinality(String)
    ) ENGINE = ReplacingMergeTree
    PARTITION BY toYYYYMMDD(ts)
    ORDER BY (symbol, timeframe, ts)`,
	`CREATE TABLE IF NOT EXISTS sessionpulse.sessions (
        symbol        LowCardinality(String),
        session_name  LowCardinality(String),
        session_date  Date,
        payload       String,
        ingested_at   DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol, session_name, session_date)`,
	`CREATE TABLE IF NOT EXISTS sessionpulse.levels (
        id            String,
        symbol        LowCardinality(String),
        level_type    LowCardinality(String),
        price         Float64,
        status        LowCardinality(String),
        payload       String,
        ingested_at   DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(ingested_at)
    ORDER BY (symbol, id)`,
	`CREATE TABLE IF NOT EXISTS sessionpulse.breakouts (
        id            String,
        symbol        LowCardinality(String),
        direction     LowCardinality(String),
        ts            DateTime64(3, 'UTC'),
        payload       String,
        ingested_at   DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(ingested_at)
    ORDER BY (symbol, id)`,
	`CREATE TABLE IF NOT EXISTS sessionpulse.signals (
        id            String,
        symbol        LowCardinality(String),
        setup_type    LowCardinality(String),
        ts            DateTime64(3, 'UTC'),
        payload       String,
        ingested_at   DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(ingested_at)
    ORDER BY (symbol, id)`,
}

// Init creates the database and tables. Idempotent.
func (s *CHStorage) Init(ctx context.Context) error {
	if err := s.client.InitSchema(ctx, schema); err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	return nil
}

func (s *CHStorage) StoreCandle(ctx context.Context, c *models.Candle) error {
	const q = `
        INSERT INTO sessionpulse.candles
            (symbol, timeframe, ts, open, high, low, close, volume, session_name, data_source)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		c.Symbol, string(c.Timeframe), c.Timestamp,
		c.Open, c.High, c.Low, c.Close, c.Volume,
		string(c.SessionName), string(c.DataSource))
	if err != nil {
		return fmt.Errorf("store candle: %w", err)
	}
	return nil
}

func (s *CHStorage) StoreCandleBatch(ctx context.Context, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store candle batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO sessionpulse.candles
            (symbol, timeframe, ts, open, high, low, close, volume, session_name, data_source)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("store candle batch: %w", err)
	}
	defer stmt.Close()
	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx,
			c.Symbol, string(c.Timeframe), c.Timestamp,
			c.Open, c.High, c.Low, c.Close, c.Volume,
			string(c.SessionName), string(c.DataSource)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store candle batch: %w", err)
		}
	}
	return tx.Commit()
}

func (s *CHStorage) Candles(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]*models.Candle, error) {
	start := time.Now()
	from, to = util.AlignFromTo(from, to, string(tf))
	const q = `
        SELECT symbol, timeframe, ts, open, high, low, close, volume, session_name, data_source
        FROM sessionpulse.candles
        WHERE symbol = ? AND timeframe = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), from, to)
	if err != nil {
		s.l.Error("clickhouse candles query error",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err))
		return nil, fmt.Errorf("get candles: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Candle, 0, 1024)
	for rows.Next() {
		var c models.Candle
		var tfStr, sess, src string
		if err := rows.Scan(&c.Symbol, &tfStr, &c.Timestamp,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &sess, &src); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timeframe = models.Timeframe(tfStr)
		c.SessionName = models.SessionName(sess)
		c.DataSource = models.DataSource(src)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse candles ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func (s *CHStorage) StoreSession(ctx context.Context, sess *models.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	const q = `
        INSERT INTO sessionpulse.sessions (symbol, session_name, session_date, payload)
        VALUES (?, ?, ?, ?)
    `
	if _, err := s.db.ExecContext(ctx, q,
		sess.Symbol, string(sess.Name), sess.Date, string(payload)); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *CHStorage) StoreLevel(ctx context.Context, l *models.Level) error {
	payload, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal level: %w", err)
	}
	const q = `
        INSERT INTO sessionpulse.levels (id, symbol, level_type, price, status, payload)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	if _, err := s.db.ExecContext(ctx, q,
		l.ID, l.Symbol, string(l.Type), l.Price, string(l.Status), string(payload)); err != nil {
		return fmt.Errorf("store level: %w", err)
	}
	return nil
}

func (s *CHStorage) StoreBreakout(ctx context.Context, b *models.Breakout) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal breakout: %w", err)
	}
	const q = `
        INSERT INTO sessionpulse.breakouts (id, symbol, direction, ts, payload)
        VALUES (?, ?, ?, ?, ?)
    `
	if _, err := s.db.ExecContext(ctx, q,
		b.ID, b.Symbol, string(b.Direction), b.Timestamp, string(payload)); err != nil {
		return fmt.Errorf("store breakout: %w", err)
	}
	return nil
}

func (s *CHStorage) StoreSignal(ctx context.Context, sig *models.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	const q = `
        INSERT INTO sessionpulse.signals (id, symbol, setup_type, ts, payload)
        VALUES (?, ?, ?, ?, ?)
    `
	if _, err := s.db.ExecContext(ctx, q,
		sig.ID, sig.Symbol, sig.SetupType, sig.CreatedAt, string(payload)); err != nil {
		return fmt.Errorf("store signal: %w", err)
	}
	return nil
}

// PurgeBefore drops candle partitions older than the cutoff. Row-level data
// in the narrow tables is left to ReplacingMergeTree compaction.
func (s *CHStorage) PurgeBefore(ctx context.Context, cutoff time.Time) error {
	const q = `ALTER TABLE sessionpulse.candles DELETE WHERE ts < ?`
	if _, err := s.db.ExecContext(ctx, q, cutoff); err != nil {
		return fmt.Errorf("purge candles: %w", err)
	}
	s.l.Info("purged candles", applogger.String("cutoff", cutoff.UTC().Format(time.RFC3339)))
	return nil
}

func (s *CHStorage) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *CHStorage) Close() error {
	return s.client.Close()
}
