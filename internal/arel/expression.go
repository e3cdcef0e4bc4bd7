package arel

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Expression is any value that can render itself as a SQL fragment:
// a column reference, a literal, a predicate, an ordering, a grouping.
//
// The Context tells the expression which clause it is rendered for, so the
// same column can render qualified in a join and bare otherwise.
type Expression interface {
	ToSQL(c *Context) string
}

// Attribute is an Expression that a relation exposes as one of its output
// columns.
//
// Implementations must be comparable (pointer types in practice): attributes
// are used as map keys by Row and by the resolution cache.
type Attribute interface {
	Expression

	// AliasOrName is the name the attribute is known by in the output.
	AliasOrName() string

	// Match reports whether other refers to the same underlying column,
	// regardless of how many aliases or derived tables separate them.
	Match(other Attribute) bool

	// Closeness scores how near other is to this attribute, from 0 (no
	// shared history) to 1 (identical).
	Closeness(other Attribute) float64
}

// Blanker is implemented by expressions that can be empty. A blank
// argument turns an algebra operation into a no-op.
type Blanker interface {
	Blank() bool
}

// Aggregator is implemented by attributes that aggregate rows (COUNT, SUM).
// A projection of an aggregating attribute is itself an aggregation.
type Aggregator interface {
	Aggregation() bool
}

// IsBlank reports whether e is absent: nil, or an expression that reports
// itself blank.
func IsBlank(e Expression) bool {
	if e == nil {
		return true
	}
	if b, ok := e.(Blanker); ok {
		return b.Blank()
	}
	return false
}

// allBlank reports whether every element of xs is blank. An empty slice is
// blank.
func allBlank[T Expression](xs []T) bool {
	for _, x := range xs {
		if !IsBlank(x) {
			return false
		}
	}
	return true
}

// present returns the non-blank elements of xs in order.
func present[T Expression](xs []T) []T {
	out := make([]T, 0, len(xs))
	for _, x := range xs {
		if !IsBlank(x) {
			out = append(out, x)
		}
	}
	return out
}

// Quote renders a Go value as a SQL literal.
//
// Strings are single-quoted with embedded quotes doubled, byte slices are
// rendered as blob literals and times as UTC timestamps. Expressions are
// not literals; callers render them with ToSQL instead.
func Quote(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(x)
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(x)) + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return quoteString(x.UTC().Format("2006-01-02 15:04:05"))
	case fmt.Stringer:
		return quoteString(x.String())
	default:
		return quoteString(fmt.Sprint(v))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// render compiles a value that is either an Expression or a plain Go value.
func render(v any, c *Context) string {
	if e, ok := v.(Expression); ok {
		return e.ToSQL(c)
	}
	return Quote(v)
}
