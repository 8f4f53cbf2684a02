package httpx

import (
	"context"
	"net/http"

	"github.com/sojourn-travel/sojourn-payments/internal/clients"
)

// ClientResolver maps an API key to an onboarded client. *clients.Repo
// implements it.
type ClientResolver interface {
	FindByAPIKey(ctx context.Context, apiKey string) (clients.Client, error)
}

type ctxKey int

const ctxKeyClientID ctxKey = iota

// APIKeyAuth rejects requests without a resolvable X-Api-Key and stashes the
// client id in the request context for handlers.
func APIKeyAuth(resolver ClientResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Api-Key")
			if key == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing api key"})
				return
			}
			c, err := resolver.FindByAPIKey(r.Context(), key)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyClientID, c.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientID returns the authenticated client id, if any.
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyClientID).(string)
	return id
}
