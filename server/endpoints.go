package server

import (
	"net/http"
	"strings"
)

// wildcard marks a pattern segment that matches any single path segment.
const wildcard = ":"

// Endpoint is one entry in a policy allow-list: a set of methods and a path
// pattern such as "/users/:id". Endpoints are built at startup and never
// mutated afterwards.
type Endpoint struct {
	methods  []string
	segments []string
}

// NewEndpoint builds an allow-list entry for the given pattern and methods.
func NewEndpoint(pattern string, methods ...string) Endpoint {
	return Endpoint{
		methods:  methods,
		segments: splitPath(pattern),
	}
}

func (e Endpoint) allowsMethod(method string) bool {
	for _, m := range e.methods {
		if m == method {
			return true
		}
	}
	return false
}

// matchesPath checks the path against the pattern: equal segment counts and
// a conjunction over every position. A mismatch at any position is final; a
// later wildcard must not resurrect the candidate.
func (e Endpoint) matchesPath(path string) bool {
	segments := splitPath(path)
	if len(segments) != len(e.segments) {
		return false
	}
	for i, pattern := range e.segments {
		if strings.HasPrefix(pattern, wildcard) {
			continue
		}
		if pattern != segments[i] {
			return false
		}
	}
	return true
}

// Endpoints is an ordered allow-list; the first full match wins.
type Endpoints []Endpoint

// Match reports whether any endpoint covers the (method, path) pair.
func (es Endpoints) Match(method, path string) bool {
	for _, e := range es {
		if e.allowsMethod(method) && e.matchesPath(path) {
			return true
		}
	}
	return false
}

// MatchPreflight is Match with the CORS preflight rule: an OPTIONS request
// satisfies the declared methods of any endpoint whose path it matches.
func (es Endpoints) MatchPreflight(method, path string) bool {
	if method != http.MethodOptions {
		return es.Match(method, path)
	}
	for _, e := range es {
		if e.matchesPath(path) {
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}
