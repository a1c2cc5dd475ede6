package cache

import "context"

// Reader is the cache API needed by list and detail reads.
type Reader interface {
	Fetch(ctx context.Context, key Key, load Loader, opts ...FetchOption) (any, error)
	GetQueryData(key Key) (any, bool)
}

// Writer is the cache API needed by mutations.
type Writer interface {
	Invalidate(prefix Key) int
	SetQueryData(key Key, data any)
}

// Collectable is the cache API needed by the garbage collector.
type Collectable interface {
	Collect() int
}

// QueryCache is the cache contract the application container exposes.
type QueryCache interface {
	Reader
	Writer
	Collectable
}

var _ QueryCache = (*Store)(nil)
