package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Structures
		r.Post("/structures", h.GenerateStructure)
		r.Get("/structures", h.GetStructure)
		r.Post("/structures/accepted", h.AcceptStructure)

		// Served documentation
		r.Get("/docs", h.GetDocs)
		r.Get("/docs/section", h.GetSection)

		// Batch content
		r.Post("/content", h.GenerateContent)

		// Knowledge base
		r.Get("/knowledge/stats", h.KnowledgeStats)

		// Repository configuration
		r.Get("/config/validate", h.ValidateConfig)
		r.Post("/config/reload", h.ReloadConfig)
	})
}
