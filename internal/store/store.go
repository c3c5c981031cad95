// Package store persists catalog lookup results in SQLite. Writes are
// idempotent on the collectable fingerprint.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/shelfwise/shelfwise/internal/collectable"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// ErrNotFound is returned when no collectable matches.
var ErrNotFound = errors.New("collectable not found")

// Record is a stored collectable with its bookkeeping columns.
type Record struct {
	ID          string                  `json:"id"`
	Collectable collectable.Collectable `json:"collectable"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// Store is the SQLite-backed collectable store.
type Store struct {
	conn   *sql.DB
	path   string
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// Open opens (creating if needed) the database at path.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		conn:   conn,
		path:   path,
		logger: logger.With().Str("component", "store").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Migrate runs all pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.conn, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Store upserts c keyed on its fingerprint and returns the record id. Storing
// the same item twice returns the same id and refreshes the payload.
func (s *Store) Store(ctx context.Context, c collectable.Collectable) (string, error) {
	if c.Fingerprint == "" {
		c.Fingerprint = collectable.Fingerprint(c.Title, c.PrimaryCreator, c.Year, c.Kind)
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode collectable: %w", err)
	}

	now := s.now().UTC()
	var id string
	err = s.conn.QueryRowContext(ctx, `
		INSERT INTO collectables (
			id, fingerprint, lightweight_fingerprint, kind, title, primary_creator,
			year, external_id, source, payload, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			lightweight_fingerprint = excluded.lightweight_fingerprint,
			external_id = excluded.external_id,
			source = excluded.source,
			payload = excluded.payload,
			updated_at = excluded.updated_at
		RETURNING id`,
		s.newID(), c.Fingerprint, c.LightweightFingerprint, string(c.Kind), c.Title, c.PrimaryCreator,
		c.Year, c.ExternalID, c.MatchedSource, string(payload), now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to store collectable: %w", err)
	}

	s.logger.Debug().Str("id", id).Str("fingerprint", c.Fingerprint).Str("title", c.Title).Msg("Stored collectable")
	return id, nil
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	return s.queryOne(ctx, `SELECT id, payload, created_at, updated_at FROM collectables WHERE id = ?`, id)
}

// FindByFingerprint returns the record owning fingerprint.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*Record, error) {
	return s.queryOne(ctx, `SELECT id, payload, created_at, updated_at FROM collectables WHERE fingerprint = ?`, fingerprint)
}

// FindSimilar returns records sharing the lightweight fingerprint, i.e. the
// same title and kind regardless of creator and year.
func (s *Store) FindSimilar(ctx context.Context, lightweightFingerprint string) ([]Record, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, payload, created_at, updated_at FROM collectables
		WHERE lightweight_fingerprint = ?
		ORDER BY created_at, id`, lightweightFingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to query collectables: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read collectables: %w", err)
	}
	return out, nil
}

// Count returns the number of stored collectables.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM collectables`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count collectables: %w", err)
	}
	return n, nil
}

func (s *Store) queryOne(ctx context.Context, query string, arg any) (*Record, error) {
	rec, err := scanRecord(s.conn.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec     Record
		payload string
	)
	if err := row.Scan(&rec.ID, &payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan collectable: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Collectable); err != nil {
		return nil, fmt.Errorf("failed to decode collectable %s: %w", rec.ID, err)
	}
	return &rec, nil
}
