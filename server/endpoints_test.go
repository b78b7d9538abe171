package server_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-users-service/server"
)

func TestEndpointsMatch(t *testing.T) {
	endpoints := server.Endpoints{
		server.NewEndpoint("/users", http.MethodPost, http.MethodGet),
		server.NewEndpoint("/users/:id", http.MethodPut, http.MethodDelete),
	}

	tests := []struct {
		name   string
		method string
		path   string
		want   bool
	}{
		{"listed method and literal path", http.MethodPost, "/users", true},
		{"second listed method", http.MethodGet, "/users", true},
		{"unlisted method", http.MethodDelete, "/users", false},
		{"wildcard segment", http.MethodPut, "/users/42", true},
		{"wildcard matches any literal", http.MethodDelete, "/users/foo", true},
		{"segment count too long", http.MethodPost, "/users/42/extra", false},
		{"segment count too short", http.MethodPut, "/users", false},
		{"unknown path", http.MethodPost, "/setup", false},
		{"trailing slash", http.MethodPost, "/users/", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, endpoints.Match(tc.method, tc.path))
		})
	}
}

// A mismatch at an early position must be final: an incidental match at a
// later position cannot resurrect the candidate pattern.
func TestEndpointsMatchIsConjunction(t *testing.T) {
	endpoints := server.Endpoints{
		server.NewEndpoint("/users/:id", http.MethodGet),
	}

	require.False(t, endpoints.Match(http.MethodGet, "/accounts/42"))
	require.False(t, endpoints.Match(http.MethodGet, "/accounts/users"))
}

func TestEndpointsMatchScansWholeList(t *testing.T) {
	endpoints := server.Endpoints{
		server.NewEndpoint("/login", http.MethodPost),
		server.NewEndpoint("/users/:id", http.MethodGet),
	}

	require.True(t, endpoints.Match(http.MethodGet, "/users/7"))
	require.False(t, endpoints.Match(http.MethodGet, "/login"))
}

func TestEndpointsMatchPreflight(t *testing.T) {
	endpoints := server.Endpoints{
		server.NewEndpoint("/login", http.MethodPost),
	}

	// OPTIONS satisfies the declared method as long as the path matches.
	require.True(t, endpoints.MatchPreflight(http.MethodOptions, "/login"))
	require.False(t, endpoints.MatchPreflight(http.MethodOptions, "/setup"))

	// Non-OPTIONS requests keep exact method semantics.
	require.True(t, endpoints.MatchPreflight(http.MethodPost, "/login"))
	require.False(t, endpoints.MatchPreflight(http.MethodGet, "/login"))
}
