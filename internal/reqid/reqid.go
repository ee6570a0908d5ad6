// Package reqid carries a correlation ID for one request or evaluation
// through a context.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

// key is the context key for the request ID.
type key struct{}

// NewContext returns a copy of parent with a fresh random ID stored, and
// the ID itself.
func NewContext(parent context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(parent, key{}, id), id
}

// WithID stores a caller-supplied ID, e.g. one received from a peer.
func WithID(parent context.Context, id string) context.Context {
	return context.WithValue(parent, key{}, id)
}

// FromContext extracts the ID from ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok && id != ""
}

// Ensure returns ctx unchanged when it already carries an ID, and a new
// context with a fresh ID otherwise.
func Ensure(ctx context.Context) (context.Context, string) {
	if id, ok := FromContext(ctx); ok {
		return ctx, id
	}
	return NewContext(ctx)
}

type scopeKey struct{}

type scope struct {
	id, parent string
}

// NewScope opens a tracing scope nested in the one ctx carries, if any.
// Scope IDs are always freshly minted, so two scopes never share an ID even
// when their request IDs (which may come from peers) are equal.
func NewScope(ctx context.Context) (context.Context, string) {
	parent, _ := ctx.Value(scopeKey{}).(scope)
	s := scope{id: uuid.NewString(), parent: parent.id}
	return context.WithValue(ctx, scopeKey{}, s), s.id
}

// Scope returns the innermost scope ID of ctx and the ID of its parent
// scope. Both are empty when ctx has no scope.
func Scope(ctx context.Context) (id, parent string) {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s.id, s.parent
}
