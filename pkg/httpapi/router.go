// Package httpapi implements an OpenAI-compatible HTTP subset over a
// pkg/hearth.Server: /openai/v1/models, /openai/v1/completions,
// /openai/v1/chat/completions, /openai/v1/embeddings.
package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hearthai/hearth/pkg/hearth"
	"github.com/hearthai/hearth/pkg/store"
)

// NewRouter builds the chi router serving srv's operations, with a model
// catalog sourced from st for the /models listing endpoint.
func NewRouter(srv *hearth.Server, st *store.Store) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	h := &handlers{srv: srv, store: st}

	r.Route("/openai/v1", func(r chi.Router) {
		r.Get("/models", h.listModels)
		r.Post("/completions", h.completions)
		r.Post("/chat/completions", h.chatCompletions)
		r.Post("/embeddings", h.embeddings)
	})

	return r
}
