package session

import (
	"context"
	"errors"
	"iter"

	"github.com/roach88/arel/internal/arel"
)

// Session runs the statements of one relation call against the engine's
// store. It implements both arel.Session and arel.Connection.
type Session struct {
	id     string
	engine *Engine
}

// ID returns the session id used in logs and journal entries.
func (s *Session) ID() string {
	return s.id
}

// Execute implements arel.Connection.
func (s *Session) Execute(ctx context.Context, sql string) ([][]any, error) {
	seq := s.engine.clock.Next()
	tuples, err := s.engine.store.Execute(ctx, sql)
	if err != nil {
		return nil, s.fail(ErrCodeExecute, KindRead, seq, sql, err)
	}
	s.done(KindRead, seq, sql, int64(len(tuples)))
	return tuples, nil
}

// Read implements arel.Session. The relation is compiled and executed
// once, when the sequence is first ranged over.
func (s *Session) Read(ctx context.Context, r arel.Relation) iter.Seq2[arel.Row, error] {
	return func(yield func(arel.Row, error) bool) {
		rows, err := r.Call(ctx, s)
		if err != nil {
			var se *StatementError
			if !errors.As(err, &se) {
				err = s.fail(ErrCodeCompile, KindRead, s.engine.clock.Next(), "", err)
			}
			yield(nil, err)
			return
		}
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Create implements arel.Session.
func (s *Session) Create(ctx context.Context, insertion *arel.Insertion) error {
	return s.write(ctx, KindInsert, insertion)
}

// Update implements arel.Session.
func (s *Session) Update(ctx context.Context, update *arel.Update) error {
	return s.write(ctx, KindUpdate, update)
}

// Delete implements arel.Session.
func (s *Session) Delete(ctx context.Context, deletion *arel.Deletion) error {
	return s.write(ctx, KindDelete, deletion)
}

type command interface {
	ToSQL() (string, error)
}

func (s *Session) write(ctx context.Context, kind Kind, cmd command) error {
	seq := s.engine.clock.Next()

	sql, err := cmd.ToSQL()
	if err != nil {
		return s.fail(ErrCodeCompile, kind, seq, "", err)
	}

	n, err := s.engine.store.Exec(ctx, sql)
	if err != nil {
		return s.fail(ErrCodeExecute, kind, seq, sql, err)
	}

	s.done(kind, seq, sql, n)
	return nil
}

func (s *Session) done(kind Kind, seq int64, sql string, rows int64) {
	s.engine.logger.Debug("statement executed",
		"session", s.id,
		"seq", seq,
		"kind", kind,
		"rows", rows,
		"sql", sql,
	)
	if j := s.engine.journal; j != nil {
		j.record(Entry{Seq: seq, Session: s.id, Kind: kind, SQL: sql, Rows: rows})
	}
}

func (s *Session) fail(code ErrorCode, kind Kind, seq int64, sql string, err error) error {
	s.engine.logger.Error("statement failed",
		"session", s.id,
		"seq", seq,
		"kind", kind,
		"sql", sql,
		"error", err,
	)
	if j := s.engine.journal; j != nil {
		j.record(Entry{Seq: seq, Session: s.id, Kind: kind, SQL: sql, Error: err.Error()})
	}
	return &StatementError{Code: code, Kind: kind, Seq: seq, SQL: sql, Err: err}
}
