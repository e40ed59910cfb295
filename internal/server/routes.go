package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/attorney/internal/api/v1"
	"github.com/gosuda/attorney/internal/api/ws"
)

func registerAPIRoutes(api huma.API, deps Deps) {
	v1.RegisterDocumentRoutes(api, deps.Requester, deps.Threads)
	v1.RegisterThreadRoutes(api, deps.Threads, deps.Activity)
	v1.RegisterAcquaintanceRoutes(api, deps.Directory)
	v1.RegisterAgentRoutes(api, deps.Agents)
	v1.RegisterTurnRoutes(api, deps.Sessions)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/documents/{documentID}", hub.ServeDocument)
	r.Get("/threads/{threadID}", hub.ServeThread)
}
