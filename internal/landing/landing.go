// Package landing serves Rob to landing-page visitors over REST and a
// WebSocket.
package landing

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// Landing exposes the chat endpoints and the landing page.
type Landing struct {
	registry *Registry
	log      *slog.Logger
}

// New creates the landing handlers around a dialogue registry.
func New(registry *Registry, logger *slog.Logger) *Landing {
	if logger == nil {
		logger = slog.Default()
	}
	return &Landing{registry: registry, log: logger}
}

// RegisterRoutes mounts the landing page, the chat API and the WebSocket.
func (l *Landing) RegisterRoutes(r chi.Router) {
	r.Get("/", l.ServeIndex)
	r.Route("/api/chat/sessions", func(r chi.Router) {
		r.Post("/", l.handleCreate)
		r.Get("/{key}", l.handleGet)
		r.Delete("/{key}", l.handleReset)
		r.Post("/{key}/messages", l.handleMessage)
		r.Post("/{key}/notify", l.handleNotify)
	})
	r.Get("/ws/chat", l.handleWebSocket)
}
