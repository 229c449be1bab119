package registry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Recording statuses.
const (
	StatusProcessing = "processing"
	StatusStreaming  = "streaming"
	StatusCompleted  = "completed"
)

// Recording is one catalog entry.
type Recording struct {
	BaseName  string    `json:"base_name"`
	Filename  string    `json:"filename"`
	Status    string    `json:"status"`
	Segments  int       `json:"segments"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry provides read-write access to the recordings catalog.
type Registry struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog database at path.
func Open(path string) (*Registry, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS recordings (
			base_name  TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			status     TEXT NOT NULL,
			segments   INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create recordings table: %w", err)
	}

	return &Registry{db: db}, nil
}

// Close closes the database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Upsert inserts or updates a recording entry. CreatedAt is preserved on
// update.
func (r *Registry) Upsert(rec Recording) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO recordings (base_name, filename, status, segments, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(base_name) DO UPDATE SET
			filename   = excluded.filename,
			status     = excluded.status,
			segments   = excluded.segments,
			updated_at = excluded.updated_at
	`, rec.BaseName, rec.Filename, rec.Status, rec.Segments, now, now)
	if err != nil {
		return fmt.Errorf("upsert recording: %w", err)
	}
	return nil
}

// Get returns one recording, or nil when absent.
func (r *Registry) Get(baseName string) (*Recording, error) {
	row := r.db.QueryRow(`
		SELECT base_name, filename, status, segments, created_at, updated_at
		FROM recordings
		WHERE base_name = ?
	`, baseName)

	var rec Recording
	var createdAt, updatedAt int64
	if err := row.Scan(&rec.BaseName, &rec.Filename, &rec.Status,
		&rec.Segments, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan recording: %w", err)
	}

	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

// List returns all recordings, newest first.
func (r *Registry) List() ([]Recording, error) {
	rows, err := r.db.Query(`
		SELECT base_name, filename, status, segments, created_at, updated_at
		FROM recordings
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var recs []Recording
	for rows.Next() {
		var rec Recording
		var createdAt, updatedAt int64
		if err := rows.Scan(&rec.BaseName, &rec.Filename, &rec.Status,
			&rec.Segments, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.UpdatedAt = time.Unix(updatedAt, 0)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
