package cache

import "strings"

// Key identifies a cached query, e.g. {"brands", "list", "pagina=1&pagina_registros=20"}.
// Keys are hierarchical: invalidating {"brands"} drops every key that starts with it.
type Key []string

func NewKey(parts ...string) Key {
	return append(Key(nil), parts...)
}

// Append returns a new key extended with parts; k itself is not modified.
func (k Key) Append(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// HasPrefix reports whether k starts with every element of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	return strings.Join(k, "/")
}

// id is the map key; the unit separator cannot appear in query strings.
func (k Key) id() string {
	return strings.Join(k, "\x1f")
}
