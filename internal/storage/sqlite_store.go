package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// SQLiteStore persists records in a single kv table.
type SQLiteStore struct {
	conn *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "news-radar.db"
	}
	slog.Info("storage: opening sqlite", "path", path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping sqlite: %w", err)
	}
	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &SQLiteStore{conn: conn}, nil
}

func runMigrations(conn *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("storage: set goose dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		return fmt.Errorf("storage: run migrations: %w", err)
	}
	return nil
}

func toMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64)
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) (Record, bool, error) {
	var (
		data []byte
		exp  sql.NullInt64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT data, expires_at FROM kv WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&data, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("storage: get %s/%s: %w", namespace, key, err)
	}
	rec := Record{Key: key, Data: data, ExpiresAt: fromMillis(exp)}
	if expired(rec, time.Now()) {
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (s *SQLiteStore) Load(ctx context.Context, namespace string) ([]Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT key, data, expires_at FROM kv
		 WHERE namespace = ? AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY key`,
		namespace, time.Now().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load %s: %w", namespace, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec Record
			exp sql.NullInt64
		)
		if err := rows.Scan(&rec.Key, &rec.Data, &exp); err != nil {
			return nil, fmt.Errorf("storage: scan %s: %w", namespace, err)
		}
		rec.ExpiresAt = fromMillis(exp)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Put(ctx context.Context, namespace string, rec Record) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO kv (namespace, key, data, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET
		   data = excluded.data,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`,
		namespace, rec.Key, rec.Data, toMillis(rec.ExpiresAt), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storage: put %s/%s: %w", namespace, rec.Key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, namespace, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return fmt.Errorf("storage: delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Purge removes expired rows across all namespaces.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("storage: purge: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
