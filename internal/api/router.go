package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/catalogservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// identityHeader names the header carrying the caller id (DefaultIdentityHeader if empty).
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *catalogservice.Service, authEnabled bool, token, identityHeader string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))
	r.Use(IdentityMiddleware(identityHeader))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
	})

	r.Post("/objects", h.CreateObject)
	r.Get("/objects/name/{name}", h.ObjectVersions)
	r.Route("/objects/{objectId}", func(r chi.Router) {
		r.Get("/", h.GetObject)
		r.Patch("/", h.PatchObject)
		r.Put("/attributes", h.UpdateAttributes)
		r.Put("/methods", h.UpdateMethods)
		r.Get("/history", h.History)
		r.Post("/relationships", h.CreateRelationship)
		r.Get("/instances", h.ListInstances)
		r.Post("/instances", h.CreateInstance)
	})

	r.Get("/search", h.Search)
	r.Get("/designs", h.Designs)
	r.Get("/browse", h.Browse)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
