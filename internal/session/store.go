// Package session persists per-session form state so it survives the
// stateless request/re-render cycle. Two backends: Redis when configured,
// in-memory otherwise.
package session

import (
	"context"
	"errors"

	"refacao/api/internal/form"
)

// ErrNotFound reports an unknown or expired session id.
var ErrNotFound = errors.New("session not found")

// Store is the form-state persistence contract.
type Store interface {
	Save(ctx context.Context, sessionID string, state *form.State) error
	Load(ctx context.Context, sessionID string) (*form.State, error)
	Delete(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
	Close() error
}
