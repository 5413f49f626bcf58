package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserIDHeader carries the authenticated operator set by the upstream proxy.
const UserIDHeader = "X-User-ID"

// ContextWithUserID returns a new context that carries the operator starting an import.
func ContextWithUserID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext retrieves the operator from the context, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	value := ctx.Value(userIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// InitiatedBy returns the operator as an optional id for import logs.
func InitiatedBy(ctx context.Context) *uuid.UUID {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return nil
	}
	return &id
}

// UserMiddleware copies a well-formed X-User-ID header into the request
// context. Malformed values are ignored.
func UserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(ContextWithUserID(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
