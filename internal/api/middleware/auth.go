package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/regassist/internal/api"
	"github.com/cloo-solutions/regassist/internal/logger"
)

type contextKey string

const (
	ClientIDKey     contextKey = "client_id"
	clientHolderKey contextKey = "client_holder"
)

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// clientHolder lets outer middleware read the client identified further in.
type clientHolder struct {
	id string
}

// ensureClientHolder returns r carrying a holder, reusing one set by an outer middleware.
func ensureClientHolder(r *http.Request) (*http.Request, *clientHolder) {
	if h, ok := r.Context().Value(clientHolderKey).(*clientHolder); ok {
		return r, h
	}
	h := &clientHolder{}
	return r.WithContext(context.WithValue(r.Context(), clientHolderKey, h)), h
}

// APIKeyAuth requires a valid bearer token. A nil validator disables the check.
func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			clientID, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			if h, ok := r.Context().Value(clientHolderKey).(*clientHolder); ok {
				h.id = clientID
			}
			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("client_id", clientID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClientID(ctx context.Context) string {
	clientID, _ := ctx.Value(ClientIDKey).(string)
	return clientID
}
