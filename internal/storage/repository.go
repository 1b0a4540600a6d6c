package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gastosbot/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the write-mostly journal of handled events.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; concurrent handlers share a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const insertEvent = `INSERT INTO event_log (
	message_id, sender_id, bot_channel_id, event_kind, command,
	identified, delivered, error, duration_ms, handled_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// RecordEvent implements services.EventRecorder
func (r *SQLiteRepository) RecordEvent(ctx context.Context, rec core.EventRecord) error {
	handledAt := rec.HandledAt
	if handledAt.IsZero() {
		handledAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, insertEvent,
		rec.MessageID,
		rec.SenderID,
		rec.BotChannelID,
		rec.Kind.String(),
		rec.Command.String(),
		boolToInt(rec.Identified),
		boolToInt(rec.Delivered),
		rec.Error,
		rec.Duration.Milliseconds(),
		handledAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert event record: %w", err)
	}
	return nil
}

const selectRecent = `SELECT message_id, sender_id, bot_channel_id, event_kind, command,
	identified, delivered, error, duration_ms, handled_at
FROM event_log
ORDER BY id DESC
LIMIT ?`

// RecentEvents returns up to limit records, newest first.
func (r *SQLiteRepository) RecentEvents(ctx context.Context, limit int) ([]core.EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var records []core.EventRecord
	for rows.Next() {
		var (
			rec                   core.EventRecord
			kind, command, at     string
			identified, delivered int64
			durationMs            int64
		)
		if err := rows.Scan(&rec.MessageID, &rec.SenderID, &rec.BotChannelID, &kind, &command,
			&identified, &delivered, &rec.Error, &durationMs, &at); err != nil {
			return nil, fmt.Errorf("scan event record: %w", err)
		}

		rec.Kind = core.ParseEventKind(kind)
		rec.Command, _ = core.ParseCommandKind(command)
		rec.Identified = identified != 0
		rec.Delivered = delivered != 0
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		if rec.HandledAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse handled_at %q: %w", at, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event records: %w", err)
	}
	return records, nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// dsn adds the pragmas every journal connection needs.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
