package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/roster-sync/internal/hub"
	"github.com/DoyleJ11/roster-sync/internal/ws"
)

func SetupRoutes(h *hub.Hub, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Post("/sessions", CreateSession(h, log.Named("http")))
	r.Get("/sessions", ListSessions(h))
	r.Get("/sessions/{code}", GetSession(h))
	r.Delete("/sessions/{code}", DeleteSession(h))
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.Handler(h, log))
	return r
}
