// Package screen keeps the state of a list screen: its filters, paging and the
// accumulated items, and loads pages through a repository.
package screen

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Filters holds the query parameters of a list screen. Changing any filter
// sends the screen back to page 1.
type Filters struct {
	mu       sync.RWMutex
	initial  map[string]string
	values   map[string]string
	page     int
	pageSize int
}

func NewFilters(initial map[string]string, pageSize int) *Filters {
	f := &Filters{initial: copyValues(initial), pageSize: pageSize}
	f.values = copyValues(initial)
	f.page = 1
	return f
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// UpdateFilter sets one filter and resets the page. It reports whether the value changed.
func (f *Filters) UpdateFilter(key, value string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	value = strings.TrimSpace(value)
	if f.values[key] == value {
		return false
	}
	if value == "" {
		delete(f.values, key)
	} else {
		f.values[key] = value
	}
	f.page = 1
	return true
}

// Update applies several filters at once. It reports whether anything changed.
func (f *Filters) Update(values map[string]string) bool {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changed := false
	for _, k := range keys {
		if f.UpdateFilter(k, values[k]) {
			changed = true
		}
	}
	return changed
}

// SetPage moves to page n, n >= 1.
func (f *Filters) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = n
}

// SetPageSize changes the page size and resets the page. It reports whether it changed.
func (f *Filters) SetPageSize(n int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 1 || n == f.pageSize {
		return false
	}
	f.pageSize = n
	f.page = 1
	return true
}

// Reset restores the initial filters and page 1.
func (f *Filters) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = copyValues(f.initial)
	f.page = 1
}

func (f *Filters) Page() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.page
}

func (f *Filters) PageSize() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pageSize
}

// Values returns a copy of the active filters, without paging.
func (f *Filters) Values() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copyValues(f.values)
}

// Params builds the backend query for page. Empty filters are left out.
func (f *Filters) Params(page int) url.Values {
	f.mu.RLock()
	defer f.mu.RUnlock()
	params := url.Values{}
	for k, v := range f.values {
		if v != "" {
			params.Set(k, v)
		}
	}
	params.Set("pagina", strconv.Itoa(page))
	params.Set("pagina_registros", strconv.Itoa(f.pageSize))
	return params
}
