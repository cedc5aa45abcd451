package port

import "context"

// SessionStore holds structured values under namespaced keys of a session.
type SessionStore interface {
	Load(ctx context.Context, sessionID, key string, dst any) (bool, error)
	Save(ctx context.Context, sessionID, key string, value any) error
	Delete(ctx context.Context, sessionID, key string) error
}
