package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/create", h.Create)
		r.Post("/negotiate", h.Negotiate)
		r.Post("/ping", h.Ping)
		r.Post("/destroy", h.Destroy)
		r.Get("/connect", h.ConnectHost)
		r.Get("/join", h.JoinMember)
	})
	return r
}
