package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// BasicRouter implements the [Router] interface on top of a [chi.Mux].
type BasicRouter struct {
	mux *chi.Mux
}

// NewBasicRouter creates a new [BasicRouter] instance with JSON 404 and 405 answers.
func NewBasicRouter() *BasicRouter {
	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found.")
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})
	return &BasicRouter{mux: mux}
}

// Use adds [Middleware] to the router's stack, applied in the order it's added.
//
// All middleware must be added before the first route is registered.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.mux.Use(chain(middleware)...)
}

// Handle registers handler for the method and path. Route-level middleware wraps only this route.
func (r *BasicRouter) Handle(method, path string, handler http.Handler, middleware ...Middleware) {
	r.mux.Method(method, path, Apply(handler, middleware...))
}

// Handler registers every route returned by [Handler.Routes].
func (r *BasicRouter) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		r.Handle(route.Method, route.Path, route.Handler, route.Middleware...)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with middleware. The first middleware is the outermost and runs first.
func Apply(handler http.Handler, middleware ...Middleware) http.Handler {
	wrapped := handler
	for i := len(middleware) - 1; i >= 0; i-- {
		wrapped = middleware[i](wrapped)
	}
	return wrapped
}

func chain(middleware []Middleware) []func(http.Handler) http.Handler {
	fns := make([]func(http.Handler) http.Handler, len(middleware))
	for i, m := range middleware {
		fns[i] = m
	}
	return fns
}
