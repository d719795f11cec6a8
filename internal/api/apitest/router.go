// Package apitest runs an in-process imitation of the Scrapp backend for
// tests: token auth, paginated posts, image classification and disposal chat.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router builds the chi router. Routes keep Django's trailing slashes.
func (b *Backend) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(b.recordMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/users/login/", b.loginHandler)
		r.Post("/users/register/", b.registerHandler)
		r.Post("/classify/", b.classifyHandler)
		r.Post("/disposal-chat/", b.chatHandler)

		r.Group(func(r chi.Router) {
			r.Use(b.tokenAuthMiddleware)

			r.Get("/posts/", b.listPostsHandler)
			r.Post("/posts/", b.createPostHandler)
		})
	})

	return r
}

// Start serves the router on a loopback listener until the test ends and
// returns the server root URL (no trailing slash).
func (b *Backend) Start(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(b.Router())
	t.Cleanup(srv.Close)
	return srv.URL
}
