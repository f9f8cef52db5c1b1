package session

import "context"

type providerContextKey struct{}

// ContextWithProvider stores the session provider in context.
func ContextWithProvider(ctx context.Context, p Provider) context.Context {
	return context.WithValue(ctx, providerContextKey{}, p)
}

// FromContext extracts the session provider from context.
func FromContext(ctx context.Context) Provider {
	p, _ := ctx.Value(providerContextKey{}).(Provider)
	return p
}

// SnapshotFromContext returns the current snapshot. Without a provider the
// request is treated as anonymous.
func SnapshotFromContext(ctx context.Context) Snapshot {
	p := FromContext(ctx)
	if p == nil {
		return Anonymous()
	}
	return p.Snapshot()
}
