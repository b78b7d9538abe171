package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-users-service/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the verified session claims
const ContextKeySession ContextKey = "session_claims"

// SessionFromContext returns the claims the AuthGate attached to a request
// that passed a gated endpoint.
func SessionFromContext(ctx context.Context) (*token.SessionClaims, bool) {
	claims, ok := ctx.Value(ContextKeySession).(*token.SessionClaims)
	return claims, ok
}

// AuthGate requires a valid bearer session token on every request matching
// the given endpoint list. Requests outside the list pass through untouched:
// only listed endpoints are protected. On success the verified claims are
// injected into the request context; on failure the downstream handler never
// runs.
func AuthGate(endpoints Endpoints, codec *token.Codec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !endpoints.Match(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, ErrnoAuthHeader, MessageAuthHeader)
				return
			}

			claims, err := codec.Verify(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, ErrnoUnauthorized, "")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// CORS response header values. The origin is always the wildcard and the
// header/method sets are fixed; only the endpoint list is configurable.
const (
	corsAllowedHeaders = "accept, content-type"
	corsAllowedMethods = "GET, HEAD, POST, DELETE, OPTIONS, PUT, PATCH"
)

// CorsPolicy decorates responses for endpoints on the given list. It sits
// outermost in the pipeline so the headers are present on every response for
// a listed endpoint, including auth rejections and handler errors; browser
// callers must be able to read structured error bodies cross-origin.
// Preflight OPTIONS requests matching the list are answered directly.
func CorsPolicy(endpoints Endpoints) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !endpoints.MatchPreflight(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := w.Header()
			header.Set("Access-Control-Allow-Origin", "*")
			header.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			header.Set("Access-Control-Allow-Methods", corsAllowedMethods)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one event per request: method, path, status, duration.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
