package cache

import (
	"slices"
	"strings"
)

// Key identifies a cached resource: a resource name followed by the
// parameters that select it, e.g. Key{"plan", "42"}.
type Key []string

// NewKey builds a key from its parts.
func NewKey(parts ...string) Key {
	return Key(slices.Clone(parts))
}

// String renders the key for logs and the cache inspector.
func (k Key) String() string {
	return "[" + strings.Join(k, " ") + "]"
}

// HasPrefix reports whether every element of prefix matches the start of k.
// An empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	return slices.Equal(k[:len(prefix)], prefix)
}

// Equal reports whether both keys have the same elements.
func (k Key) Equal(other Key) bool {
	return slices.Equal(k, other)
}

// id is the map key for k. Parts are joined with a byte that cannot appear
// in resource ids.
func (k Key) id() string {
	return strings.Join(k, "\x00")
}
