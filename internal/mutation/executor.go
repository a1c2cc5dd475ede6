// Package mutation runs create/update/delete calls against the backend and
// keeps the query cache coherent with their outcome.
package mutation

import (
	"context"
	"sync"

	"github.com/bassista/go_backoffice/internal/cache"
	"github.com/bassista/go_backoffice/internal/logger"
	"github.com/bassista/go_backoffice/internal/metrics"
)

// Status is the observable state of an Executor.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Func sends a mutation to the backend.
type Func[P, R any] func(ctx context.Context, payload P) (R, error)

// Options describes the cache effects of a successful mutation.
type Options[P, R any] struct {
	// Name labels logs and metrics, e.g. "brands.update".
	Name string
	// Invalidate lists the key prefixes dropped after success.
	Invalidate []cache.Key
	// DetailKey, when set and returning ok, names the cache entry overwritten with the result.
	DetailKey func(payload P, result R) (cache.Key, bool)
}

// Executor runs one kind of mutation. It never retries.
type Executor[P, R any] struct {
	fn    Func[P, R]
	cache cache.Writer
	opts  Options[P, R]

	mu      sync.Mutex
	status  Status
	lastErr error
}

func NewExecutor[P, R any](c cache.Writer, fn Func[P, R], opts Options[P, R]) *Executor[P, R] {
	return &Executor[P, R]{fn: fn, cache: c, opts: opts}
}

// Execute sends payload. On success every configured list prefix is invalidated
// and the detail entry, if any, is overwritten with the result. On failure the
// cache is left alone and the error is returned unchanged.
func (e *Executor[P, R]) Execute(ctx context.Context, payload P) (R, error) {
	log := logger.WithComponent("mutation").WithField("mutation", e.opts.Name)

	e.setState(StatusPending, nil)
	result, err := e.fn(ctx, payload)
	if err != nil {
		e.setState(StatusError, err)
		metrics.RecordMutation(e.opts.Name, false)
		log.Warnf("mutation failed: %v", err)
		var zero R
		return zero, err
	}

	if e.cache != nil {
		for _, prefix := range e.opts.Invalidate {
			e.cache.Invalidate(prefix)
		}
		if e.opts.DetailKey != nil {
			if key, ok := e.opts.DetailKey(payload, result); ok {
				e.cache.SetQueryData(key, result)
			}
		}
	}

	e.setState(StatusSuccess, nil)
	metrics.RecordMutation(e.opts.Name, true)
	log.Debug("mutation succeeded")
	return result, nil
}

func (e *Executor[P, R]) setState(s Status, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = s
	e.lastErr = err
}

func (e *Executor[P, R]) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LastError returns the error of the last failed Execute, cleared by the next call.
func (e *Executor[P, R]) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Executor[P, R]) Name() string {
	return e.opts.Name
}
