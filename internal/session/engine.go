package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/arel/internal/arel"
	"github.com/roach88/arel/internal/store"
)

// Engine is the arel.Engine backed by a SQLite store.
//
// Thread-safety model:
//   - Session(), Connection(), Table(): safe from any goroutine
//   - Sessions serialize on the store's single connection
type Engine struct {
	store   *store.Store
	logger  *slog.Logger
	clock   *Clock
	ids     IDGenerator
	journal *Journal
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithLogger sets the logger statements are logged to.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the clock statements are numbered by.
// Use NewClockAt to continue numbering from an earlier run.
func WithClock(clock *Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithIDGenerator sets the session id generator.
// Default: UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(e *Engine) {
		e.ids = ids
	}
}

// WithJournal records every statement in j.
func WithJournal(j *Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: slog.Default(),
		clock:  NewClock(),
		ids:    UUIDv7Generator{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Session implements arel.Engine. Every call returns a new session with
// its own id.
func (e *Engine) Session() arel.Session {
	return e.newSession()
}

// Connection implements arel.Engine. The connection is a fresh session, so
// statements run through it are logged and journaled like any other.
func (e *Engine) Connection() arel.Connection {
	return e.newSession()
}

// Journal returns the attached journal, or nil.
func (e *Engine) Journal() *Journal {
	return e.journal
}

// Table returns a base relation for the table name bound to this engine.
// Without explicit columns the table's columns are read from the database.
func (e *Engine) Table(ctx context.Context, name string, columns ...string) (*arel.Table, error) {
	if len(columns) == 0 {
		cols, err := e.store.Columns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		columns = cols
	}
	return arel.NewTable(name, e, columns...), nil
}

func (e *Engine) newSession() *Session {
	id := e.ids.Generate()
	e.logger.Debug("session opened", "session", id)
	return &Session{id: id, engine: e}
}
