package registry

import "context"

type ctxKey struct{}

// WithRegistry returns a context carrying r as the active registry for
// coordinated operations.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext returns the registry carried by ctx, if any.
func FromContext(ctx context.Context) (*Registry, bool) {
	if ctx == nil {
		return nil, false
	}
	r, ok := ctx.Value(ctxKey{}).(*Registry)
	return r, ok && r != nil
}
