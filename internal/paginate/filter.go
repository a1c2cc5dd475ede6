package paginate

import "strings"

// Field extracts the searchable strings of an item. Returning several strings
// lets a field reach into a nested collection.
type Field[E any] func(E) []string

// Text builds a Field from a single string accessor.
func Text[E any](get func(E) string) Field[E] {
	return func(e E) []string { return []string{get(e)} }
}

// Nested builds a Field over a nested collection, e.g. a category's subcategories.
func Nested[E, N any](children func(E) []N, get func(N) string) Field[E] {
	return func(e E) []string {
		kids := children(e)
		out := make([]string, 0, len(kids))
		for _, k := range kids {
			out = append(out, get(k))
		}
		return out
	}
}

// Matcher returns a predicate matching items where any field contains query,
// ignoring case. An empty query matches everything.
func Matcher[E any](query string, fields ...Field[E]) func(E) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return func(E) bool { return true }
	}
	return func(e E) bool {
		for _, f := range fields {
			for _, s := range f(e) {
				if strings.Contains(strings.ToLower(s), q) {
					return true
				}
			}
		}
		return false
	}
}

// FilterBy returns the items matching query on any of fields. items is not modified.
func FilterBy[E any](items []E, query string, fields ...Field[E]) []E {
	match := Matcher(query, fields...)
	out := make([]E, 0, len(items))
	for _, it := range items {
		if match(it) {
			out = append(out, it)
		}
	}
	return out
}
