package engine

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Coalescer shares one in-flight call between concurrent callers asking for
// the same key. The key is released as soon as the call settles, success or
// failure, so the next caller starts fresh. Scope is a single process.
type Coalescer[T any] struct {
	group singleflight.Group
}

// Do runs fn once per in-flight key. shared reports whether the result was
// handed to more than one caller.
func (c *Coalescer[T]) Do(key string, fn func() (T, error)) (T, bool, error) {
	v, err, shared := c.group.Do(key, func() (any, error) {
		return fn()
	})
	if shared {
		metrics.CoalescedCalls.Add(1)
	}
	out, _ := v.(T)
	return out, shared, err
}

// DoContext is Do for callers that may give up early. A caller whose ctx ends
// gets ctx.Err() at once; the shared call keeps running for the others, so fn
// must not depend on any single caller's context.
func (c *Coalescer[T]) DoContext(ctx context.Context, key string, fn func() (T, error)) (T, bool, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		return fn()
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case r := <-ch:
		if r.Shared {
			metrics.CoalescedCalls.Add(1)
		}
		out, _ := r.Val.(T)
		return out, r.Shared, r.Err
	}
}
