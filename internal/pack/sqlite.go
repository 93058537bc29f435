package pack

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/remolder/internal/resource"
)

const resourcesSchema = `
CREATE TABLE IF NOT EXISTS resources (
	location TEXT PRIMARY KEY,
	content BLOB NOT NULL,
	metadata TEXT
);`

// SQLiteSource reads a pack stored in a SQLite database table
// resources(location, content, metadata).
type SQLiteSource struct {
	id string
	db *sql.DB
}

// OpenSQLite opens a pack database for reading.
func OpenSQLite(id, dbPath string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec(`SELECT 1 FROM resources LIMIT 1`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	return &SQLiteSource{id: id, db: db}, nil
}

func (s *SQLiteSource) ID() string { return s.id }

// Close releases the database.
func (s *SQLiteSource) Close() error { return s.db.Close() }

func (s *SQLiteSource) Locations() ([]string, error) {
	rows, err := s.db.Query(`SELECT location FROM resources ORDER BY location`)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var out []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteSource) Resource(location string) (resource.Resource, error) {
	var (
		content  []byte
		metadata sql.NullString
	)
	err := s.db.QueryRow(`SELECT content, metadata FROM resources WHERE location = ?`, location).Scan(&content, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return resource.Resource{}, fmt.Errorf("resource %s: not found", location)
	}
	if err != nil {
		return resource.Resource{}, fmt.Errorf("resource %s: %w", location, err)
	}
	if !metadata.Valid {
		return resource.FromBytes(s.id, content), nil
	}
	text := metadata.String
	return resource.FromBytes(s.id, content, resource.WithMetadataOpener(func() (*resource.Metadata, error) {
		return resource.ParseMetadata(strings.NewReader(text))
	})), nil
}

// SQLiteSink writes resources into a pack database. Writes are batched in
// transactions; Close commits the last batch.
type SQLiteSink struct {
	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	batchSize int
	count     int
	mu        sync.Mutex
}

// CreateSQLite opens or creates a pack database for writing.
func CreateSQLite(dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(resourcesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &SQLiteSink{db: db, batchSize: 1000}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteSink) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmt, err = w.tx.Prepare(`INSERT OR REPLACE INTO resources (location, content, metadata) VALUES (?, ?, ?)`)
	return err
}

func (w *SQLiteSink) commitTx() error {
	if w.stmt != nil {
		_ = w.stmt.Close()
	}
	return w.tx.Commit()
}

// Put writes one resource.
func (w *SQLiteSink) Put(location string, res resource.Resource) error {
	data, err := res.ReadAll()
	if err != nil {
		return err
	}
	var metadata *string
	md, err := res.Metadata()
	if err != nil {
		return fmt.Errorf("metadata of %s: %w", location, err)
	}
	if md != nil {
		text, err := md.Bytes()
		if err != nil {
			return fmt.Errorf("metadata of %s: %w", location, err)
		}
		s := string(text)
		metadata = &s
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.stmt.Exec(location, data, metadata); err != nil {
		return fmt.Errorf("insert %s: %w", location, err)
	}
	w.count++
	if w.count >= w.batchSize {
		if err := w.commitTx(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if err := w.beginTx(); err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		w.count = 0
	}
	return nil
}

// Close commits pending writes and closes the database.
func (w *SQLiteSink) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	return w.db.Close()
}
