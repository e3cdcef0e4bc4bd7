package arel

import "github.com/puzpuzpuz/xsync/v4"

// nameKey keeps name lookups and attribute lookups apart in the cache.
type nameKey string

func (n *node) resolutions() *xsync.Map[any, Attribute] {
	n.resolveOnce.Do(func() {
		n.resolved = xsync.NewMap[any, Attribute]()
	})
	return n.resolved
}

// resolve memoizes find under key. Concurrent misses on the same key run
// find once.
func (n *node) resolve(key any, find func() Attribute) Attribute {
	a, _ := n.resolutions().LoadOrCompute(key, func() (Attribute, bool) {
		return find(), false
	})
	return a
}

// Attr returns the first attribute whose alias or name equals name, or nil.
func (n *node) Attr(name string) Attribute {
	return n.resolve(nameKey(name), func() Attribute {
		return findByName(n.self.Attributes(), name)
	})
}

// AttrFor returns the exposed attribute that refers to the same column as
// attribute, or nil. When several match, the closest wins; among equally
// close candidates the first exposed one wins.
func (n *node) AttrFor(attribute Attribute) Attribute {
	if IsBlank(attribute) {
		return nil
	}
	return n.resolve(attribute, func() Attribute {
		return findByAttribute(n.self.Attributes(), attribute)
	})
}

// Attrs resolves each key in turn. A key is a string name or an Attribute.
// A []any, []string or []Attribute key stands for its elements, resolved
// in place. Keys of any other type resolve to nil.
func (n *node) Attrs(keys ...any) []Attribute {
	out := make([]Attribute, 0, len(keys))
	for _, k := range keys {
		switch key := k.(type) {
		case string:
			out = append(out, n.Attr(key))
		case Attribute:
			out = append(out, n.AttrFor(key))
		case []any:
			out = append(out, n.Attrs(key...)...)
		case []string:
			for _, name := range key {
				out = append(out, n.Attr(name))
			}
		case []Attribute:
			for _, a := range key {
				out = append(out, n.AttrFor(a))
			}
		default:
			out = append(out, nil)
		}
	}
	return out
}

func findByName(attrs []Attribute, name string) Attribute {
	for _, a := range attrs {
		if a.AliasOrName() == name {
			return a
		}
	}
	return nil
}

func findByAttribute(attrs []Attribute, attribute Attribute) Attribute {
	var best Attribute
	bestScore := 0.0
	for _, a := range attrs {
		if !a.Match(attribute) {
			continue
		}
		score := attribute.Closeness(a)
		if best == nil || score > bestScore {
			best, bestScore = a, score
		}
	}
	return best
}
