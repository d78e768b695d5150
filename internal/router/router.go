package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
)

// wildcard marks a pattern as "this literal prefix, then anything".
const wildcard = "*"

var (
	ErrRouterFrozen = errors.New("router: registration after freeze")
	ErrNilHandler   = errors.New("router: nil handler")
)

// Handler turns a request and the response built so far into the response
// to send. It may mutate or replace res but must not keep either past the
// call.
type Handler func(req *request.Request, res *response.Response) *response.Response

// RouteConflictError is returned when (method, pattern) is already taken.
type RouteConflictError struct {
	Method  request.Method
	Pattern string
}

func (e *RouteConflictError) Error() string {
	return fmt.Sprintf("router: handler already exists for %s %s", e.Method, e.Pattern)
}

// Route represents a single registered route
type Route struct {
	Method  request.Method
	Pattern string // normalized
	Handler Handler

	// prefix is the literal part of a wildcard pattern, trailing "/" stripped.
	prefix   string
	wildcard bool
}

// IsWildcard reports whether the route ends in "*".
func (r *Route) IsWildcard() bool {
	return r.wildcard
}

// Prefix is the literal prefix a wildcard route matches against.
func (r *Route) Prefix() string {
	return r.prefix
}

// Match is the result of a successful Resolve.
type Match struct {
	Route *Route
	// Wildcard is the remainder of the path after the route's prefix, with
	// leading slashes removed.
	Wildcard string
}

type routeKey struct {
	method  request.Method
	pattern string
}

// Router stores handlers keyed by (method, pattern). Registration happens
// during startup; once Freeze is called the router is read-only and safe for
// concurrent Resolve calls.
type Router struct {
	routes    []*Route
	exact     map[routeKey]*Route
	wildcards map[request.Method][]*Route // longest prefix first
	frozen    bool
}

// New creates a new router
func New() *Router {
	return &Router{
		exact:     make(map[routeKey]*Route),
		wildcards: make(map[request.Method][]*Route),
	}
}

// Register adds handler for (method, pattern). Trailing slashes in pattern are
// ignored.
func (r *Router) Register(method request.Method, pattern string, handler Handler) error {
	if r.frozen {
		return ErrRouterFrozen
	}
	if handler == nil {
		return ErrNilHandler
	}
	if _, err := request.ParseMethod(string(method)); err != nil {
		return fmt.Errorf("router: %w", err)
	}

	normalized := normalize(pattern)
	key := routeKey{method: method, pattern: normalized}
	if _, exists := r.exact[key]; exists {
		return &RouteConflictError{Method: method, Pattern: normalized}
	}
	for _, route := range r.wildcards[method] {
		if route.Pattern == normalized {
			return &RouteConflictError{Method: method, Pattern: normalized}
		}
	}

	route := &Route{
		Method:  method,
		Pattern: normalized,
		Handler: handler,
	}

	if strings.HasSuffix(normalized, wildcard) {
		route.wildcard = true
		route.prefix = normalize(strings.TrimSuffix(normalized, wildcard))

		list := append(r.wildcards[method], route)
		// Stable, so equal prefixes keep registration order.
		sort.SliceStable(list, func(i, j int) bool {
			return len(list[i].prefix) > len(list[j].prefix)
		})
		r.wildcards[method] = list
	} else {
		r.exact[key] = route
	}

	r.routes = append(r.routes, route)
	return nil
}

// GET is a shortcut for Register(request.MethodGet, ...)
func (r *Router) GET(pattern string, handler Handler) error {
	return r.Register(request.MethodGet, pattern, handler)
}

// POST is a shortcut for Register(request.MethodPost, ...)
func (r *Router) POST(pattern string, handler Handler) error {
	return r.Register(request.MethodPost, pattern, handler)
}

// Freeze ends the registration phase.
func (r *Router) Freeze() {
	r.frozen = true
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []*Route {
	out := make([]*Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Resolve finds the handler for method and path. Trailing slashes are
// insignificant; everything else, a query string included, is matched
// literally. An exact route beats any wildcard; among wildcards the longest
// literal prefix wins.
func (r *Router) Resolve(method request.Method, path string) (Match, bool) {
	path = normalize(path)

	if route, ok := r.exact[routeKey{method: method, pattern: path}]; ok {
		return Match{Route: route}, true
	}

	for _, route := range r.wildcards[method] {
		if strings.HasPrefix(path, route.prefix) {
			rest := strings.TrimLeft(path[len(route.prefix):], "/")
			return Match{Route: route, Wildcard: rest}, true
		}
	}

	return Match{}, false
}

// normalize strips trailing slashes.
func normalize(path string) string {
	return strings.TrimRight(path, "/")
}
