// Package store keeps packaged programs and their run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/sbc/pkg/image"
)

// ErrProgramNotFound indicates the requested program doesn't exist
var ErrProgramNotFound = errors.New("program not found")

var log = commonlog.GetLogger("sbc.store")

const schema = `
CREATE TABLE IF NOT EXISTS programs (
	name       TEXT PRIMARY KEY,
	image      BLOB NOT NULL,
	digest     BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	program     TEXT NOT NULL,
	status      TEXT NOT NULL,
	result      TEXT NOT NULL,
	error       TEXT NOT NULL,
	steps       INTEGER NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_program ON runs (program, started_at);
`

// Status is the outcome of a recorded run.
type Status string

const (
	StatusReturned  Status = "returned"
	StatusExhausted Status = "exhausted"
	StatusFault     Status = "fault"
)

// Program is a stored program's metadata.
type Program struct {
	Name      string
	Digest    [32]byte
	Size      int
	CreatedAt time.Time
}

// Run is one recorded execution of a stored program.
type Run struct {
	ID         string
	Program    string
	Status     Status
	Result     string // formatted result value
	Error      string // fault message, empty on success
	Steps      int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store handles SQLite storage for programs
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	log.Debugf("opened store %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Put stores img under its name, replacing any previous program.
func (s *Store) Put(ctx context.Context, img *image.Image) error {
	if img.Name == "" {
		return fmt.Errorf("saving program: empty name")
	}
	data, err := image.Marshal(img)
	if err != nil {
		return fmt.Errorf("encoding program %s: %w", img.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO programs (name, image, digest, created_at) VALUES (?, ?, ?, ?)",
		img.Name, data, img.Digest[:], time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving program %s: %w", img.Name, err)
	}
	return nil
}

// Get loads the program stored under name.
func (s *Store) Get(ctx context.Context, name string) (*image.Image, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT image FROM programs WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, name)
		}
		return nil, fmt.Errorf("querying program %s: %w", name, err)
	}
	img, err := image.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decoding program %s: %w", name, err)
	}
	return img, nil
}

// Delete removes a program. Its run history is kept.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM programs WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting program %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, name)
	}
	return nil
}

// List returns stored programs ordered by name.
func (s *Store) List(ctx context.Context) ([]Program, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, digest, length(image), created_at FROM programs ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	defer rows.Close()

	var programs []Program
	for rows.Next() {
		var (
			p       Program
			digest  []byte
			created int64
		)
		if err := rows.Scan(&p.Name, &digest, &p.Size, &created); err != nil {
			return nil, fmt.Errorf("scanning program: %w", err)
		}
		copy(p.Digest[:], digest)
		p.CreatedAt = time.Unix(0, created)
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

// RecordRun stores a run and returns its ID. A new ID is assigned when
// run.ID is empty.
func (s *Store) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, program, status, result, error, steps, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Program, string(run.Status), run.Result, run.Error, run.Steps,
		run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("recording run of %s: %w", run.Program, err)
	}
	log.Debugf("recorded run %s of %s: %s", run.ID, run.Program, run.Status)
	return run.ID, nil
}

// Runs returns up to limit runs of program, most recent first. A limit of
// 0 or less returns all runs.
func (s *Store) Runs(ctx context.Context, program string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, program, status, result, error, steps, started_at, finished_at
		 FROM runs WHERE program = ? ORDER BY started_at DESC LIMIT ?`,
		program, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs of %s: %w", program, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			status            string
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.Program, &status, &r.Result, &r.Error, &r.Steps, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Status = Status(status)
		r.StartedAt = time.Unix(0, started)
		r.FinishedAt = time.Unix(0, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
