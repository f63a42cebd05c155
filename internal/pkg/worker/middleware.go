package worker

// Middleware is a function that wraps a Handler with additional functionality
type Middleware func(Handler) Handler

// Chain combines multiple middlewares into a single middleware.
// The first middleware is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(handler Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}
