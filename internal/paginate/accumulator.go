// Package paginate merges pages fetched from the backend into a list view,
// either replacing the view page by page or appending for infinite scroll.
package paginate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bassista/go_backoffice/internal/logger"
	"github.com/bassista/go_backoffice/internal/metrics"
)

// Mode selects how arriving pages are merged.
type Mode int

const (
	// ModePaged shows one page at a time.
	ModePaged Mode = iota
	// ModeInfinite appends later pages to the ones already loaded.
	ModeInfinite
)

func (m Mode) String() string {
	if m == ModeInfinite {
		return "infinite"
	}
	return "paged"
}

// ParseMode accepts "paged" and "infinite" (case-insensitive). Empty means paged.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "paged", "pages":
		return ModePaged, nil
	case "infinite", "scroll":
		return ModeInfinite, nil
	default:
		return ModePaged, fmt.Errorf("unknown list mode %q", s)
	}
}

// Entity is anything with a backend id. Zero means the id is missing.
type Entity interface {
	EntityID() int64
}

// PageResult is one page as delivered by the data layer.
type PageResult[E Entity] struct {
	Items   []E
	HasMore bool
}

// Ticket tags a page request with the state that was current when it was issued.
type Ticket struct {
	Page       int
	Mode       Mode
	generation uint64
}

// Accumulator holds the merged items of a list screen. It is safe for concurrent use.
type Accumulator[E Entity] struct {
	mu         sync.RWMutex
	name       string
	items      []E
	page       int
	requested  int
	hasMore    bool
	mode       Mode
	generation uint64
	err        error
}

// NewAccumulator returns an empty accumulator. name is only used for logging.
func NewAccumulator[E Entity](name string, mode Mode) *Accumulator[E] {
	return &Accumulator[E]{name: name, mode: mode, page: 1, requested: 1, hasMore: true}
}

// Begin records that page is about to be requested and returns the ticket the
// answer must carry.
func (a *Accumulator[E]) Begin(page int) Ticket {
	if page < 1 {
		page = 1
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requested = page
	return Ticket{Page: page, Mode: a.mode, generation: a.generation}
}

// OnPageArrived merges a page. It returns false when the page was discarded
// because it belongs to an abandoned generation or a page no longer requested.
func (a *Accumulator[E]) OnPageArrived(t Ticket, res PageResult[E]) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	log := logger.WithResource("paginate", a.name)
	if t.generation != a.generation || t.Mode != a.mode {
		metrics.RecordStalePageDiscarded()
		log.Debugf("discarding page %d from generation %d (current %d)", t.Page, t.generation, a.generation)
		return false
	}
	if a.mode == ModePaged && t.Page != a.requested {
		metrics.RecordStalePageDiscarded()
		log.Debugf("discarding page %d, page %d is requested", t.Page, a.requested)
		return false
	}

	clean := sanitize(res.Items)
	if dropped := len(res.Items) - len(clean); dropped > 0 {
		log.Warnf("dropped %d malformed or duplicate items from page %d", dropped, t.Page)
	}

	if a.mode == ModeInfinite && t.Page > 1 {
		seen := make(map[int64]struct{}, len(a.items))
		for _, it := range a.items {
			seen[it.EntityID()] = struct{}{}
		}
		merged := make([]E, len(a.items), len(a.items)+len(clean))
		copy(merged, a.items)
		for _, it := range clean {
			if _, dup := seen[it.EntityID()]; dup {
				continue
			}
			seen[it.EntityID()] = struct{}{}
			merged = append(merged, it)
		}
		a.items = merged
	} else {
		a.items = clean
	}

	a.page = t.Page
	a.hasMore = res.HasMore
	a.err = nil
	log.Tracef("merged page %d (%s), %d items, hasMore=%v", t.Page, a.mode, len(a.items), a.hasMore)
	return true
}

// OnPageFailed records a fetch failure without touching the items. Failures of
// abandoned generations are ignored.
func (a *Accumulator[E]) OnPageFailed(t Ticket, err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t.generation != a.generation {
		return false
	}
	a.err = err
	return true
}

// sanitize drops items without an id and collapses duplicate ids to the first occurrence.
func sanitize[E Entity](items []E) []E {
	out := make([]E, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		id := it.EntityID()
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Reset empties the view and abandons every request issued so far.
func (a *Accumulator[E]) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
}

func (a *Accumulator[E]) resetLocked() {
	a.items = nil
	a.page = 1
	a.requested = 1
	a.hasMore = true
	a.err = nil
	a.generation++
}

// SetMode switches between paged and infinite merging. A change resets the view.
func (a *Accumulator[E]) SetMode(m Mode) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == m {
		return false
	}
	a.mode = m
	a.resetLocked()
	return true
}

// Remove drops the item with id from the view, e.g. right after a confirmed delete.
// The next page load replaces this local edit.
func (a *Accumulator[E]) Remove(id int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, it := range a.items {
		if it.EntityID() == id {
			a.items = append(a.items[:i:i], a.items[i+1:]...)
			return true
		}
	}
	return false
}

// Items returns a copy of the merged items in arrival order.
func (a *Accumulator[E]) Items() []E {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]E, len(a.items))
	copy(out, a.items)
	return out
}

// ApplyFilter returns the items matching pred. The view itself is unchanged.
func (a *Accumulator[E]) ApplyFilter(pred func(E) bool) []E {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]E, 0, len(a.items))
	for _, it := range a.items {
		if pred == nil || pred(it) {
			out = append(out, it)
		}
	}
	return out
}

func (a *Accumulator[E]) Page() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.page
}

func (a *Accumulator[E]) HasMore() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.hasMore
}

func (a *Accumulator[E]) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// Err returns the last fetch failure of the current generation, if any.
func (a *Accumulator[E]) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}
