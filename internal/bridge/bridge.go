// Package bridge binds admin-facing notifications to the context needed to
// route the admin's follow-up back to the originating user.
package bridge

import (
	"context"
	"errors"
)

// ErrUnknownToken is returned when a token was never bound or already released.
var ErrUnknownToken = errors.New("bridge: unknown token")

// Binding is the context attached to an admin notification.
type Binding struct {
	UserID    int64  `json:"user_id"`
	ItemKind  string `json:"item_kind"`
	ItemLabel string `json:"item_label"`
}

// Registry issues opaque tokens for bindings and resolves them later.
type Registry interface {
	Bind(ctx context.Context, b Binding) (string, error)
	// Resolve does not consume the token; the admin may press the control again
	// if a delivery fails.
	Resolve(ctx context.Context, token string) (Binding, error)
	Release(ctx context.Context, token string) error
}
