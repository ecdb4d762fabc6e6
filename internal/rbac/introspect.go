package rbac

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Route is one registered endpoint, as seen by the router or the source
// scanner. Path is the chi pattern, placeholders included.
type Route struct {
	Method string
	Path   string
}

// resourceAliases maps public URL segments onto catalog resources. Segments
// absent from the table canonicalize by replacing dashes with underscores.
var resourceAliases = map[string]string{
	"youth-profiles":      "youth_profiles",
	"mentor-businesses":   "mentors",
	"makerspace-projects": "makerspace",
}

// manageOnlyResources are guarded by a single coarse permission for every
// method on their surface.
var manageOnlyResources = map[string]string{
	"roles":       "manage",
	"permissions": "manage",
}

// authPaths never derive permissions: they must stay reachable for
// unauthenticated or newly authenticated callers.
var authPaths = map[string]struct{}{
	"/api/login":    {},
	"/api/logout":   {},
	"/api/register": {},
	"/api/me":       {},
	"/api/healthz":  {},
}

// DeriveToken maps a route onto its permission token. The second return is
// false for routes outside the permission model (non-API paths, auth paths,
// unrecognized methods).
func DeriveToken(route Route) (Token, bool) {
	path := strings.TrimSuffix(route.Path, "/")
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/api/") {
		return Token{}, false
	}
	if _, skip := authPaths[path]; skip {
		return Token{}, false
	}

	method := strings.ToUpper(route.Method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return Token{}, false
	}

	segment := path[len("/api/"):]
	subpath := ""
	if idx := strings.IndexByte(segment, '/'); idx >= 0 {
		subpath = segment[idx:]
		segment = segment[:idx]
	}
	if segment == "" || strings.HasPrefix(segment, "{") {
		return Token{}, false
	}

	resource, ok := resourceAliases[segment]
	if !ok {
		resource = strings.ReplaceAll(segment, "-", "_")
	}

	if action, ok := manageOnlyResources[resource]; ok {
		return Token{Resource: resource, Action: action}, true
	}

	switch method {
	case http.MethodGet:
		// A bare collection path lists; anything deeper, placeholder or
		// concrete, views a single record.
		if subpath == "" {
			return Token{Resource: resource, Action: "list"}, true
		}
		return Token{Resource: resource, Action: "view"}, true
	case http.MethodPost:
		return Token{Resource: resource, Action: "create"}, true
	case http.MethodPut, http.MethodPatch:
		return Token{Resource: resource, Action: "edit"}, true
	case http.MethodDelete:
		return Token{Resource: resource, Action: "delete"}, true
	default:
		return Token{}, false
	}
}

// DeriveTokens maps every route and deduplicates the result, ordered by
// resource then action so sync runs are reproducible.
func DeriveTokens(routes []Route) []Token {
	seen := make(map[Token]struct{}, len(routes))
	tokens := make([]Token, 0, len(routes))
	for _, route := range routes {
		token, ok := DeriveToken(route)
		if !ok {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Resource != tokens[j].Resource {
			return tokens[i].Resource < tokens[j].Resource
		}
		return tokens[i].Action < tokens[j].Action
	})
	return tokens
}

// RoutesFromRouter walks the live routing table. Mount wildcards are
// stripped so patterns match the handler registrations.
func RoutesFromRouter(r chi.Routes) ([]Route, error) {
	var routes []Route
	err := chi.Walk(r, func(method, pattern string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		pattern = strings.TrimSuffix(pattern, "/*")
		if pattern == "" {
			pattern = "/"
		}
		routes = append(routes, Route{Method: method, Path: pattern})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return routes, nil
}
