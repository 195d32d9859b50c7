package clog

import (
	"context"
	"sync"
)

// Attribute keys shared between the error layer and the log handlers.
const (
	ErrorAttributeKey = "error.message"
	StackAttributeKey = "error.stack"
)

// attrBag collects log attributes over the lifetime of a request. Handlers
// down the chain add to it; the slog handler drains it when the request line
// is emitted.
type attrBag struct {
	mu    sync.RWMutex
	attrs map[string]any
}

type attrBagKey struct{}

func ContextWithSlog(ctx context.Context) context.Context {
	return context.WithValue(ctx, attrBagKey{}, &attrBag{attrs: map[string]any{}})
}

func bagFrom(ctx context.Context) (*attrBag, bool) {
	b, ok := ctx.Value(attrBagKey{}).(*attrBag)
	return b, ok
}

// AddAttribute is a no-op when the context carries no bag, so library code
// can call it unconditionally.
func AddAttribute(ctx context.Context, key string, value any) {
	b, ok := bagFrom(ctx)
	if !ok {
		return
	}
	b.mu.Lock()
	b.attrs[key] = value
	b.mu.Unlock()
}

func AddAttributes(ctx context.Context, attrs map[string]any) {
	b, ok := bagFrom(ctx)
	if !ok {
		return
	}
	b.mu.Lock()
	for k, v := range attrs {
		b.attrs[k] = v
	}
	b.mu.Unlock()
}

func GetAttribute[T any](ctx context.Context, key string) T {
	var zero T
	b, ok := bagFrom(ctx)
	if !ok {
		return zero
	}
	b.mu.RLock()
	v, ok := b.attrs[key]
	b.mu.RUnlock()
	if !ok {
		return zero
	}
	typed, ok := v.(T)
	if !ok {
		return zero
	}
	return typed
}

// GetAttributes returns a snapshot copy; the bag keeps changing after this
// call while the request is still in flight.
func GetAttributes(ctx context.Context) map[string]any {
	b, ok := bagFrom(ctx)
	if !ok {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.attrs))
	for k, v := range b.attrs {
		out[k] = v
	}
	return out
}

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorAttributeKey, err)
}

func GetError(ctx context.Context) error {
	return GetAttribute[error](ctx, ErrorAttributeKey)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackAttributeKey, stack)
}

func GetStack(ctx context.Context) string {
	return GetAttribute[string](ctx, StackAttributeKey)
}
