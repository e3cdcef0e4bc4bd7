package arel

import (
	"fmt"
	"sync"
)

// Christener hands out collision-free names for the relations referenced
// by one statement. The first relation named "users" is called "users",
// the next distinct relation with the same name "users_2", and so on.
//
// Names are stable: asking twice for the same relation returns the same
// name. Safe for concurrent use.
type Christener struct {
	mu    sync.Mutex
	names map[Relation]string
	taken map[string]bool
}

// NewChristener returns an empty Christener.
func NewChristener() *Christener {
	return &Christener{
		names: make(map[Relation]string),
		taken: make(map[string]bool),
	}
}

// NameFor returns the name assigned to r, assigning one on first use.
func (c *Christener) NameFor(r Relation) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name, ok := c.names[r]; ok {
		return name
	}

	base := r.Name()
	name := base
	for i := 2; c.taken[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	c.taken[name] = true
	c.names[r] = name
	return name
}
