package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ehr/notewriter/internal/domain/selection"
)

// SQLiteRepo stores sessions in a single-file database for standalone
// installs.
type SQLiteRepo struct {
	db *sql.DB
}

// OpenSQLiteRepo opens (or creates) the database at path and ensures the
// schema exists.
func OpenSQLiteRepo(path string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	r := &SQLiteRepo{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return r, nil
}

func (r *SQLiteRepo) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS note_sessions (
			id         TEXT PRIMARY KEY,
			label      TEXT NOT NULL DEFAULT '',
			space      TEXT NOT NULL,
			version_id INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_note_sessions_created ON note_sessions(created_at);
	`)
	return err
}

// Ping checks the database handle.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// Fixed-width so ORDER BY on the text column sorts chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (r *SQLiteRepo) scan(row interface{ Scan(...any) error }) (*Session, error) {
	var (
		s                Session
		id, raw          string
		created, updated string
	)
	if err := row.Scan(&id, &s.Label, &raw, &s.VersionID, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var err error
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("sqlite: bad session id %q: %w", id, err)
	}
	if s.Space, err = selection.Decode([]byte(raw)); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	s.CreatedAt, _ = time.Parse(sqliteTimeLayout, created)
	s.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updated)
	return &s, nil
}

func (r *SQLiteRepo) Create(ctx context.Context, s *Session) error {
	s.ID = uuid.New()
	if s.Space == nil {
		s.Space = selection.NewSpace()
	}
	if s.VersionID == 0 {
		s.VersionID = 1
	}
	raw, err := s.Space.Encode()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO note_sessions (id, label, space, version_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.Label, string(raw), s.VersionID,
		now.Format(sqliteTimeLayout), now.Format(sqliteTimeLayout))
	return err
}

func (r *SQLiteRepo) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	return r.scan(r.db.QueryRowContext(ctx, `
		SELECT id, label, space, version_id, created_at, updated_at
		FROM note_sessions WHERE id = ?`, id.String()))
}

func (r *SQLiteRepo) Update(ctx context.Context, s *Session) error {
	raw, err := s.Space.Encode()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE note_sessions SET label = ?, space = ?, version_id = ?, updated_at = ?
		WHERE id = ?`,
		s.Label, string(raw), s.VersionID, now.Format(sqliteTimeLayout), s.ID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.UpdatedAt = now
	return nil
}

func (r *SQLiteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM note_sessions WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepo) DeleteAll(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM note_sessions`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *SQLiteRepo) List(ctx context.Context, limit, offset int) ([]*Session, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM note_sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, label, space, version_id, created_at, updated_at
		FROM note_sessions ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Session
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
