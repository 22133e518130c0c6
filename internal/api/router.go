package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/vitalplan/internal/planservice"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *planservice.Service, auth AuthConfig, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(auth))

	r.Route("/plans/{domain}/{ownerID}", func(r chi.Router) {
		r.Use(RequireOwner)
		r.Post("/", h.GeneratePlan)
		r.Get("/", h.GetPlan)
		r.Delete("/", h.DeletePlan)
		r.Get("/rejections", h.ListRejections)
		r.Get("/rejections/{name}", h.GetRejection)
	})

	r.Get("/contracts/{domain}", h.GetContract)

	if sseHandler != nil {
		r.With(ScopeEvents).Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
