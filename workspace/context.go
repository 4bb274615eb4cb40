package workspace

import "context"

// OwnerID identifies the owner of a set of workspaces, typically one worker
// goroutine of a training loop.
type OwnerID string

type ownerKey struct{}

// WithOwner returns a context carrying owner.
func WithOwner(ctx context.Context, owner OwnerID) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFromContext returns the owner stored by WithOwner.
func OwnerFromContext(ctx context.Context) (OwnerID, bool) {
	owner, ok := ctx.Value(ownerKey{}).(OwnerID)
	return owner, ok
}
