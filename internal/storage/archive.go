// Package storage persists alarm snapshots to SQLite. The core pipeline is
// fully in-memory; the archive is an optional sink so alarm history
// survives restarts for offline review.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/good-yellow-bee/opswatch/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS alarm_archive (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	alarm_id TEXT NOT NULL,
	rule_id TEXT NOT NULL,
	rule_name TEXT NOT NULL,
	event_type TEXT NOT NULL,
	source TEXT NOT NULL,
	severity TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL,
	data TEXT,
	triggered_at TIMESTAMP NOT NULL,
	acknowledged_at TIMESTAMP,
	resolved_at TIMESTAMP,
	cleared_at TIMESTAMP,
	ack_by TEXT,
	ack_note TEXT,
	resolved_by TEXT,
	archived_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alarm_archive_alarm_id ON alarm_archive(alarm_id);
CREATE INDEX IF NOT EXISTS idx_alarm_archive_status ON alarm_archive(status);
CREATE INDEX IF NOT EXISTS idx_alarm_archive_archived_at ON alarm_archive(archived_at);
`

// AlarmArchive is a SQLite-backed sink for alarm lifecycle snapshots. Each
// status change appends one row; nothing is ever updated in place.
type AlarmArchive struct {
	path string
	db   *sql.DB
}

// NewAlarmArchive creates an archive writing to the SQLite file at path.
func NewAlarmArchive(path string) *AlarmArchive {
	return &AlarmArchive{path: path}
}

// Open initializes the database connection and schema.
func (a *AlarmArchive) Open() error {
	ctx := context.Background()

	db, err := sql.Open("sqlite", a.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return fmt.Errorf("set journal mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	a.db = db
	return nil
}

// Close closes the database connection.
func (a *AlarmArchive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Ping reports whether the database is reachable, for health checks.
func (a *AlarmArchive) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("archive not open")
	}
	return a.db.PingContext(ctx)
}

// ArchiveAlarm appends one alarm snapshot.
func (a *AlarmArchive) ArchiveAlarm(ctx context.Context, alarm *models.Alarm) error {
	var data any
	if alarm.Data != nil {
		b, err := json.Marshal(alarm.Data)
		if err != nil {
			return fmt.Errorf("marshal alarm data: %w", err)
		}
		data = string(b)
	}

	query := `
		INSERT INTO alarm_archive (alarm_id, rule_id, rule_name, event_type,
			source, severity, status, message, data, triggered_at,
			acknowledged_at, resolved_at, cleared_at, ack_by, ack_note,
			resolved_by, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := a.db.ExecContext(ctx, query,
		alarm.ID, alarm.RuleID, alarm.RuleName, alarm.EventType,
		alarm.Source, string(alarm.Severity), string(alarm.Status), alarm.Message,
		data, alarm.TriggeredAt,
		nullTime(alarm.AcknowledgedAt), nullTime(alarm.ResolvedAt), nullTime(alarm.ClearedAt),
		nullString(alarm.AckBy), nullString(alarm.AckNote), nullString(alarm.ResolvedBy),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("archive alarm: %w", err)
	}
	return nil
}

// ArchivedAlarm is one archived snapshot row.
type ArchivedAlarm struct {
	AlarmID    string             `json:"alarm_id"`
	RuleID     string             `json:"rule_id"`
	RuleName   string             `json:"rule_name"`
	EventType  string             `json:"event_type"`
	Source     string             `json:"source"`
	Severity   models.Severity    `json:"severity"`
	Status     models.AlarmStatus `json:"status"`
	Message    string             `json:"message"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// List returns archived snapshots, newest first. status filters when
// non-empty.
func (a *AlarmArchive) List(ctx context.Context, status models.AlarmStatus, limit, offset int) ([]*ArchivedAlarm, int64, error) {
	where := ""
	args := []any{}
	if status != "" {
		where = " WHERE status = ?"
		args = append(args, string(status))
	}

	var total int64
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alarm_archive"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count archive: %w", err)
	}

	query := `
		SELECT alarm_id, rule_id, rule_name, event_type, source, severity,
			status, message, archived_at
		FROM alarm_archive` + where + ` ORDER BY archived_at DESC, id DESC LIMIT ? OFFSET ?
	`
	rows, err := a.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var out []*ArchivedAlarm
	for rows.Next() {
		var row ArchivedAlarm
		if err := rows.Scan(&row.AlarmID, &row.RuleID, &row.RuleName, &row.EventType,
			&row.Source, &row.Severity, &row.Status, &row.Message, &row.ArchivedAt); err != nil {
			return nil, 0, fmt.Errorf("scan archive row: %w", err)
		}
		out = append(out, &row)
	}
	return out, total, rows.Err()
}

// Purge deletes snapshots archived before the cutoff and returns how many
// rows were removed.
func (a *AlarmArchive) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, "DELETE FROM alarm_archive WHERE archived_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("purge archive: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
