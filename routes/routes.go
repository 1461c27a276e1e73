// Package routes maps paths to views through a static table evaluated
// in a fixed order with a terminal catch-all. Protected entries are
// gated by the route guard, which consults the session store: an
// unknown session renders a loading placeholder (never a redirect), an
// unauthenticated one redirects to the auth view.
package routes

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/compareai/compare-client/session"
	"github.com/compareai/compare-client/views"
)

// Route path constants
// All client paths are defined here to ensure consistency and prevent typos
const (
	PathHome          = "/"
	PathAuth          = "/auth"
	PathPrivacyPolicy = "/privacy-policy"
	PathMatch         = "/match/:id"
)

// Access classifies a route's accessibility
type Access int

const (
	// Public routes bypass the guard entirely
	Public Access = iota
	// Protected routes require an authenticated session
	Protected
)

// Params holds matched path parameters (e.g. "id" for /match/:id)
type Params map[string]string

// HandlerFunc builds the view for a matched route
type HandlerFunc func(params Params) views.View

// Route is one static table entry
type Route struct {
	Pattern string
	Access  Access
	Handler HandlerFunc
}

// Resolution is the guard's decision: render View, or navigate to
// Redirect instead. Exactly one is set.
type Resolution struct {
	View     views.View
	Redirect string
}

// Router evaluates the route table against the session state
type Router struct {
	table    []Route
	notFound HandlerFunc
	session  *session.Store
}

// New initializes a Router with its table and terminal catch-all
func New(store *session.Store, table []Route, notFound HandlerFunc) (*Router, error) {
	if store == nil {
		return nil, errors.New("[routes.New] session store is required")
	}
	if notFound == nil {
		return nil, errors.New("[routes.New] not-found handler is required")
	}
	return &Router{
		table:    table,
		notFound: notFound,
		session:  store,
	}, nil
}

// Resolve decides what the given path renders under the current
// session state
func (r *Router) Resolve(path string) Resolution {
	state, _ := r.session.State()

	for _, route := range r.table {
		params, ok := match(route.Pattern, path)
		if !ok {
			continue
		}

		if route.Access == Public {
			// An authenticated session has no business on the auth
			// view: send it to the default view instead.
			if route.Pattern == PathAuth && state == session.StateAuthenticated {
				return Resolution{Redirect: PathHome}
			}
			return Resolution{View: route.Handler(params)}
		}

		switch state {
		case session.StateUnknown:
			// Not a redirect: the first identity check has not
			// resolved, and a valid session must not be bounced to
			// login.
			return Resolution{View: views.Loading{}}
		case session.StateUnauthenticated:
			return Resolution{Redirect: PathAuth}
		}
		return Resolution{View: route.Handler(params)}
	}

	return Resolution{View: r.notFound(Params{"path": path})}
}

// match tests path against pattern, collecting :param segments.
// Patterns and paths are compared segment by segment; a :name segment
// matches any single non-empty segment.
func match(pattern, path string) (Params, bool) {
	patternSegments := strings.Split(pattern, "/")
	pathSegments := strings.Split(path, "/")
	if len(patternSegments) != len(pathSegments) {
		return nil, false
	}

	params := Params{}
	for i, expected := range patternSegments {
		actual := pathSegments[i]
		if strings.HasPrefix(expected, ":") {
			if actual == "" {
				return nil, false
			}
			params[strings.TrimPrefix(expected, ":")] = actual
			continue
		}
		if expected != actual {
			return nil, false
		}
	}
	return params, true
}
