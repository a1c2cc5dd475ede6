// Package notify carries user-facing success and error notices.
package notify

import (
	"sync"
	"time"

	"github.com/bassista/go_backoffice/internal/logger"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notice is one message for the user.
type Notice struct {
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	At          time.Time `json:"at"`
}

// Presenter shows notices. Calls are fire-and-forget.
type Presenter interface {
	Success(n Notice)
	Error(n Notice)
}

// LogPresenter writes notices to the process log.
type LogPresenter struct{}

func (LogPresenter) Success(n Notice) {
	logger.WithComponent("notify").Infof("%s: %s", n.Title, n.Description)
}

func (LogPresenter) Error(n Notice) {
	logger.WithComponent("notify").Warnf("%s: %s", n.Title, n.Description)
}

const defaultInboxSize = 50

// Inbox queues notices until a client drains them. When full, the oldest notice is dropped.
type Inbox struct {
	mu      sync.Mutex
	notices []Notice
	size    int
	now     func() time.Time
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = defaultInboxSize
	}
	return &Inbox{size: size, now: time.Now}
}

func (i *Inbox) Success(n Notice) {
	n.Kind = KindSuccess
	i.push(n)
}

func (i *Inbox) Error(n Notice) {
	n.Kind = KindError
	i.push(n)
}

func (i *Inbox) push(n Notice) {
	if n.At.IsZero() {
		n.At = i.now()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.notices) == i.size {
		i.notices = i.notices[1:]
	}
	i.notices = append(i.notices, n)
}

// Drain returns the queued notices, oldest first, and empties the inbox.
func (i *Inbox) Drain() []Notice {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.notices
	i.notices = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.notices)
}

// Fanout forwards every notice to each presenter.
type Fanout []Presenter

func (f Fanout) Success(n Notice) {
	for _, p := range f {
		p.Success(n)
	}
}

func (f Fanout) Error(n Notice) {
	for _, p := range f {
		p.Error(n)
	}
}

var (
	_ Presenter = LogPresenter{}
	_ Presenter = (*Inbox)(nil)
	_ Presenter = Fanout(nil)
)
