package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/realty-contracts/internal/middleware"
)

// maxRequestBody ограничивает тело запроса с учётом нескольких вложений.
const maxRequestBody = 64 << 20

// SetupRouter настраивает HTTP-маршруты и middleware API договоров.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.RequestID)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.MaxBody(maxRequestBody))

	r.Route("/api", func(r chi.Router) {
		r.Get("/statuses", h.ListStatuses)

		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", h.CreateContract)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetContract)
				r.Put("/", h.UpdateContract)
				r.Delete("/", h.DeleteContract)
				r.Get("/history", h.GetHistory)
				r.Put("/documents", h.UpdateDocuments)
				r.Patch("/status/next", h.AdvanceStatus)
				r.Patch("/status", h.ChangeStatus)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
