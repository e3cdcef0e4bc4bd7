package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

// ErrNotFound is returned by OpenExisting when no database file exists at
// the path.
var ErrNotFound = errors.New("database not found")

// Store is a SQLite database that relations are executed against.
type Store struct {
	db   *sql.DB
	path string
}

// pragma is a connection setting and the value PRAGMA reads back for it.
type pragma struct {
	name, value, want string
}

// filePragmas configure file databases:
//   - WAL, so readers of a shared file are not blocked by a writer
//   - NORMAL synchronous, durable enough under WAL
//   - 5-second busy timeout for lock contention
//   - foreign key enforcement
var filePragmas = []pragma{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// Open creates or opens a SQLite database at path. Pass Memory for a
// throwaway in-memory database, which keeps SQLite's memory journal.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory
	// database disappears with its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, path: path}
	if err := s.configure(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return s, nil
}

// OpenExisting opens the database file at path, which must exist. Open
// would create an empty one, and every table lookup would then fail.
func OpenExisting(path string) (*Store, error) {
	if path != Memory {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
	}
	return Open(path)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// InMemory reports whether the store is a private in-memory database.
func (s *Store) InMemory() bool {
	return s.path == Memory
}

func (s *Store) pragmas() []pragma {
	if s.InMemory() {
		return filePragmas[1:]
	}
	return filePragmas
}

func (s *Store) configure() error {
	for _, p := range s.pragmas() {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
