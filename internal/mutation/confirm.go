package mutation

import (
	"context"
	"sync"

	"github.com/bassista/go_backoffice/internal/logger"
)

// Confirmer holds a destructive action until the user confirms it.
// Open stores the target, Confirm runs the mutation on it, and the prompt
// closes once the mutation settles either way.
type Confirmer[V, R any] struct {
	mutate    Func[V, R]
	onSuccess func(R, V)
	onError   func(error, V)

	mu      sync.Mutex
	open    bool
	target  *V
	pending bool
}

// NewConfirmer wraps mutate. onSuccess and onError may be nil.
func NewConfirmer[V, R any](mutate Func[V, R], onSuccess func(R, V), onError func(error, V)) *Confirmer[V, R] {
	return &Confirmer[V, R]{mutate: mutate, onSuccess: onSuccess, onError: onError}
}

// Open asks for confirmation on v. A second Open replaces the target.
func (c *Confirmer[V, R]) Open(v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.target = &v
}

// Close dismisses the prompt without running anything.
func (c *Confirmer[V, R]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.target = nil
}

func (c *Confirmer[V, R]) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Variables returns the pending target.
func (c *Confirmer[V, R]) Variables() (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		var zero V
		return zero, false
	}
	return *c.target, true
}

func (c *Confirmer[V, R]) IsPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Confirm runs the mutation on the pending target. It reports whether the
// mutation ran. Without a target, or while another confirmation is running,
// it does nothing and returns false, nil.
func (c *Confirmer[V, R]) Confirm(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.target == nil {
		c.mu.Unlock()
		return false, nil
	}
	if c.pending {
		c.mu.Unlock()
		logger.WithComponent("confirm").Debug("confirmation already in progress, ignoring")
		return false, nil
	}
	target := *c.target
	c.pending = true
	c.mu.Unlock()

	result, err := c.mutate(ctx, target)

	c.mu.Lock()
	c.pending = false
	c.open = false
	c.target = nil
	c.mu.Unlock()

	if err != nil {
		if c.onError != nil {
			c.onError(err, target)
		}
		return true, err
	}
	if c.onSuccess != nil {
		c.onSuccess(result, target)
	}
	return true, nil
}
