package testutil

import (
	"context"
	"iter"
	"sync"

	"github.com/roach88/arel/internal/arel"
)

// RecordingEngine is an arel.Engine for tests. It records every session it
// hands out, every write command and every statement executed, and answers
// reads with canned tuples.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type RecordingEngine struct {
	mu       sync.Mutex
	tuples   [][]any
	err      error
	sessions int
	commands []string
	executed []string
}

// NewRecordingEngine returns an engine whose reads return tuples.
func NewRecordingEngine(tuples ...[]any) *RecordingEngine {
	return &RecordingEngine{tuples: tuples}
}

// FailWith makes every later read, write and execution fail with err.
func (e *RecordingEngine) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Session implements arel.Engine. Each call returns a new session.
func (e *RecordingEngine) Session() arel.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions++
	return &recordingSession{engine: e}
}

// Connection implements arel.Engine.
func (e *RecordingEngine) Connection() arel.Connection {
	return &recordingConnection{engine: e}
}

// Sessions returns how many sessions were handed out.
func (e *RecordingEngine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions
}

// Commands returns the SQL of every write command received, in order.
func (e *RecordingEngine) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

// Executed returns every statement executed on a connection, in order.
func (e *RecordingEngine) Executed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.executed...)
}

func (e *RecordingEngine) execute(sql string) ([][]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, sql)
	if e.err != nil {
		return nil, e.err
	}
	return e.tuples, nil
}

func (e *RecordingEngine) record(cmd interface{ ToSQL() (string, error) }) error {
	sql, err := cmd.ToSQL()
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, sql)
	return e.err
}

type recordingConnection struct {
	engine *RecordingEngine
}

func (c *recordingConnection) Execute(_ context.Context, sql string) ([][]any, error) {
	return c.engine.execute(sql)
}

type recordingSession struct {
	engine *RecordingEngine
}

func (s *recordingSession) Read(ctx context.Context, r arel.Relation) iter.Seq2[arel.Row, error] {
	return func(yield func(arel.Row, error) bool) {
		rows, err := r.Call(ctx, s.engine.Connection())
		if err != nil {
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

func (s *recordingSession) Create(_ context.Context, i *arel.Insertion) error {
	return s.engine.record(i)
}

func (s *recordingSession) Update(_ context.Context, u *arel.Update) error {
	return s.engine.record(u)
}

func (s *recordingSession) Delete(_ context.Context, d *arel.Deletion) error {
	return s.engine.record(d)
}
