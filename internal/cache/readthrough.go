package cache

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ReadThrough serves values from a Cache and loads misses through a
// caller-supplied function. Keys live under a scope (an organization id for
// the service catalog) and Invalidate drops a whole scope at once.
//
// Concurrent misses for the same key share one load. A load that started
// before an Invalidate of its scope is returned to its callers but not stored.
type ReadThrough[T any] struct {
	cache Cache[T]
	group singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

func NewReadThrough[T any](c Cache[T]) *ReadThrough[T] {
	return &ReadThrough[T]{cache: c, generations: make(map[string]uint64)}
}

func scopedKey(scope, key string) string {
	return scope + "\x00" + key
}

func (r *ReadThrough[T]) generation(scope string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[scope]
}

// Get returns the cached value for key in scope, calling load on a miss.
func (r *ReadThrough[T]) Get(ctx context.Context, scope, key string, load func(context.Context) (T, error)) (T, error) {
	full := scopedKey(scope, key)
	if v, ok := r.cache.Get(full); ok {
		return v, nil
	}

	gen := r.generation(scope)
	v, err, _ := r.group.Do(full+"\x00"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		r.mu.Lock()
		if r.generations[scope] == gen {
			r.cache.Set(full, v)
		}
		r.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops every cached key of scope.
func (r *ReadThrough[T]) Invalidate(scope string) {
	r.mu.Lock()
	r.generations[scope]++
	r.cache.DeletePrefix(scope + "\x00")
	r.mu.Unlock()
}
