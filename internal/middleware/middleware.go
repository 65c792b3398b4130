package middleware

import "net/http"

// Middleware wraps an http.Handler with extra behaviour before or
// after the wrapped handler runs.
type Middleware func(http.Handler) http.Handler

// CreateStack composes middlewares into one. The first middleware in
// xs becomes the outermost wrapper, so it executes first on each
// request.
func CreateStack(xs ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(xs) - 1; i >= 0; i-- {
			next = xs[i](next)
		}
		return next
	}
}
