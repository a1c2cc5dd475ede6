package screen

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/bassista/go_backoffice/internal/logger"
	"github.com/bassista/go_backoffice/internal/paginate"
	"github.com/bassista/go_backoffice/internal/remote"
	"github.com/containerd/errdefs"
)

// Source loads one page of a list.
type Source[E paginate.Entity] interface {
	FetchPage(ctx context.Context, params url.Values) (paginate.PageResult[E], error)
}

// Options configures a List.
type Options[E paginate.Entity] struct {
	Mode     paginate.Mode
	PageSize int
	Filters  map[string]string
	Search   []paginate.Field[E]
}

// View is the state of a list screen as handed to a client.
type View[E paginate.Entity] struct {
	Resource string            `json:"resource"`
	Mode     string            `json:"mode"`
	Page     int               `json:"page"`
	PageSize int               `json:"per_page"`
	HasMore  bool              `json:"has_more"`
	Enabled  bool              `json:"enabled"`
	Filters  map[string]string `json:"filters"`
	Search   string            `json:"search,omitempty"`
	Loaded   int               `json:"loaded"`
	Items    []E               `json:"items"`
	Error    string            `json:"error,omitempty"`
}

// List is one list screen: filters plus accumulated items.
type List[E paginate.Entity] struct {
	name    string
	source  Source[E]
	acc     *paginate.Accumulator[E]
	filters *Filters
	fields  []paginate.Field[E]

	mu       sync.RWMutex
	search   string
	disabled bool
}

func NewList[E paginate.Entity](name string, source Source[E], opts Options[E]) *List[E] {
	return &List[E]{
		name:    name,
		source:  source,
		acc:     paginate.NewAccumulator[E](name, opts.Mode),
		filters: NewFilters(opts.Filters, opts.PageSize),
		fields:  opts.Search,
	}
}

func (l *List[E]) Name() string { return l.name }

func (l *List[E]) Filters() *Filters { return l.filters }

// Load fetches page and merges it. A failure keeps the items on screen and is
// returned as well as recorded in the view. A query the filters do not enable
// yet is not an error: the screen stays empty.
func (l *List[E]) Load(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	l.filters.SetPage(page)
	ticket := l.acc.Begin(page)

	res, err := l.source.FetchPage(ctx, l.filters.Params(page))
	disabled := errdefs.IsFailedPrecondition(err)
	l.mu.Lock()
	l.disabled = disabled
	l.mu.Unlock()
	if disabled {
		l.acc.Reset()
		return nil
	}
	if err != nil {
		l.acc.OnPageFailed(ticket, err)
		logger.WithResource("screen", l.name).Warnf("loading page %d: %v", page, err)
		return err
	}
	l.acc.OnPageArrived(ticket, res)
	return nil
}

// ErrNoMorePages is returned by LoadMore when the last page was already merged.
var ErrNoMorePages = errors.New("no more pages")

// LoadMore loads the page after the current one.
func (l *List[E]) LoadMore(ctx context.Context) error {
	if !l.acc.HasMore() {
		return ErrNoMorePages
	}
	return l.Load(ctx, l.acc.Page()+1)
}

// ApplyFilters updates filters; any change resets the items.
func (l *List[E]) ApplyFilters(values map[string]string) bool {
	if !l.filters.Update(values) {
		return false
	}
	l.acc.Reset()
	return true
}

// SetPageSize changes the page size; a change resets the items.
func (l *List[E]) SetPageSize(n int) bool {
	if !l.filters.SetPageSize(n) {
		return false
	}
	l.acc.Reset()
	return true
}

// SetMode switches between paged and infinite scrolling.
func (l *List[E]) SetMode(m paginate.Mode) bool {
	if !l.acc.SetMode(m) {
		return false
	}
	l.filters.SetPage(1)
	return true
}

// SetSearch sets the local text search. It never touches the items.
func (l *List[E]) SetSearch(q string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.search = q
}

// Reset restores the initial filters and empties the screen.
func (l *List[E]) Reset() {
	l.filters.Reset()
	l.acc.Reset()
	l.SetSearch("")
}

// Refresh empties the screen keeping the filters, so the next Load starts from page 1.
func (l *List[E]) Refresh() {
	l.filters.SetPage(1)
	l.acc.Reset()
}

// Remove drops an item locally, e.g. after a confirmed delete.
func (l *List[E]) Remove(id int64) bool {
	return l.acc.Remove(id)
}

// Visible returns the items passing the local search.
func (l *List[E]) Visible() []E {
	l.mu.RLock()
	q := l.search
	l.mu.RUnlock()
	return l.acc.ApplyFilter(paginate.Matcher(q, l.fields...))
}

func (l *List[E]) View() View[E] {
	l.mu.RLock()
	search, disabled := l.search, l.disabled
	l.mu.RUnlock()

	v := View[E]{
		Resource: l.name,
		Mode:     l.acc.Mode().String(),
		Page:     l.acc.Page(),
		PageSize: l.filters.PageSize(),
		HasMore:  l.acc.HasMore() && !disabled,
		Enabled:  !disabled,
		Filters:  l.filters.Values(),
		Search:   search,
		Loaded:   len(l.acc.Items()),
		Items:    l.Visible(),
	}
	if err := l.acc.Err(); err != nil {
		v.Error = remote.Message(err)
	}
	return v
}
