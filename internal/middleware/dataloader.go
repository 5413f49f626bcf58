package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/memberdesk/internal/memberloader"
	"github.com/rpattn/memberdesk/internal/repository"
)

type ctxKey string

const memberLoaderKey ctxKey = "memberLoader"

// DataLoaderMiddleware attaches a request-scoped member loader to the context
func DataLoaderMiddleware(repo repository.MemberRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := memberloader.NewMemberLoader(repo)
			ctx := context.WithValue(r.Context(), memberLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MemberLoaderFromContext retrieves the member loader from context
func MemberLoaderFromContext(ctx context.Context) *memberloader.MemberLoader {
	if l, ok := ctx.Value(memberLoaderKey).(*memberloader.MemberLoader); ok {
		return l
	}
	return nil
}
