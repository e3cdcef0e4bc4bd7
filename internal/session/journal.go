package session

import (
	"cmp"
	"slices"
	"sync"
)

// Kind is the kind of statement a session ran.
type Kind string

const (
	KindRead   Kind = "read"
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Entry is one statement recorded in a Journal.
type Entry struct {
	Seq     int64  `json:"seq" yaml:"seq"`
	Session string `json:"session" yaml:"session"`
	Kind    Kind   `json:"kind" yaml:"kind"`
	SQL     string `json:"sql" yaml:"sql"`

	// Rows is the number of rows read or affected.
	Rows int64 `json:"rows" yaml:"rows"`

	// Error is the failure text, empty on success.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Journal records the statements run through an engine.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) record(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

// Entries returns the recorded statements ordered by seq.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := slices.Clone(j.entries)
	slices.SortStableFunc(out, func(a, b Entry) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out
}
