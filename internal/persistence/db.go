// Package persistence provides the SQLite ledger of exported frames and a
// small key-value store for renderer metadata.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/rubbed-squares/internal/params"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// ExportRecord is one exported frame.
type ExportRecord struct {
	ID        string          `json:"id,omitempty"` // empty when no ledger is configured
	Filename  string          `json:"filename"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Bytes     int64           `json:"bytes"`
	Frame     uint64          `json:"frame"`
	Params    params.Snapshot `json:"params"`
	CreatedAt time.Time       `json:"created_at"`
}

// exportRow mirrors the exports table.
type exportRow struct {
	ID         string `db:"id"`
	Filename   string `db:"filename"`
	Width      int    `db:"width"`
	Height     int    `db:"height"`
	Bytes      int64  `db:"bytes"`
	Frame      int64  `db:"frame"`
	ParamsJSON string `db:"params_json"`
	CreatedAt  int64  `db:"created_at"` // unix nanoseconds
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		frame INTEGER NOT NULL,
		params_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sketch_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exports_created ON exports(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RecordExport stores an export. A missing ID or timestamp is filled in;
// the stored record is returned.
func (db *DB) RecordExport(ctx context.Context, rec ExportRecord) (ExportRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	paramsJSON, err := json.Marshal(rec.Params)
	if err != nil {
		return ExportRecord{}, fmt.Errorf("marshal params: %w", err)
	}

	_, err = db.conn.NamedExecContext(ctx, `INSERT INTO exports
		(id, filename, width, height, bytes, frame, params_json, created_at)
		VALUES (:id, :filename, :width, :height, :bytes, :frame, :params_json, :created_at)`,
		exportRow{
			ID:         rec.ID,
			Filename:   rec.Filename,
			Width:      rec.Width,
			Height:     rec.Height,
			Bytes:      rec.Bytes,
			Frame:      int64(rec.Frame),
			ParamsJSON: string(paramsJSON),
			CreatedAt:  rec.CreatedAt.UnixNano(),
		})
	if err != nil {
		return ExportRecord{}, fmt.Errorf("insert export %s: %w", rec.ID, err)
	}

	slog.Debug("export recorded", "id", rec.ID, "filename", rec.Filename)
	return rec, nil
}

// GetExport returns one export by ID.
func (db *DB) GetExport(ctx context.Context, id string) (ExportRecord, error) {
	var row exportRow
	err := db.conn.GetContext(ctx, &row, "SELECT * FROM exports WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return ExportRecord{}, ErrNotFound
	}
	if err != nil {
		return ExportRecord{}, fmt.Errorf("get export %s: %w", id, err)
	}
	return row.record()
}

// RecentExports returns the most recent exports, newest first.
func (db *DB) RecentExports(ctx context.Context, limit int) ([]ExportRecord, error) {
	var rows []exportRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT * FROM exports ORDER BY created_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}

	out := make([]ExportRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// CountExports returns the number of recorded exports.
func (db *DB) CountExports(ctx context.Context) (int, error) {
	var n int
	err := db.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM exports")
	return n, err
}

func (r exportRow) record() (ExportRecord, error) {
	var p params.Snapshot
	if err := json.Unmarshal([]byte(r.ParamsJSON), &p); err != nil {
		return ExportRecord{}, fmt.Errorf("decode params for export %s: %w", r.ID, err)
	}
	return ExportRecord{
		ID:        r.ID,
		Filename:  r.Filename,
		Width:     r.Width,
		Height:    r.Height,
		Bytes:     r.Bytes,
		Frame:     uint64(r.Frame),
		Params:    p,
		CreatedAt: time.Unix(0, r.CreatedAt),
	}, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO sketch_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM sketch_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}
