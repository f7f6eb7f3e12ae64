// Package api serves the relay's HTTP surface: the WebSocket upgrade, room
// history and send endpoints, presence listing and health.
package api

import (
	"net/http"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/identity"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	ServiceName string
	// RateLimit is the per-IP request budget per minute on /api routes.
	RateLimit int
}

func NewRouter(
	cfg RouterConfig,
	ws http.Handler,
	health http.Handler,
	resolver identity.Resolver,
	rooms *RoomHandler,
	presence *PresenceHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(observability.MetricsMiddleware(cfg.ServiceName))
	r.Use(Recovery())

	r.Get("/health", health.ServeHTTP)
	r.Get("/ws", ws.ServeHTTP)

	r.Route("/api", func(p chi.Router) {
		if cfg.RateLimit > 0 {
			p.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
		}
		p.Use(identity.Middleware(resolver, DomainError))

		roomPath := "/rooms/{roomID}/messages"
		p.Get(roomPath, rooms.ListMessages)
		p.Post(roomPath, rooms.SendMessage)

		p.Get("/presence/online", presence.Online)
	})

	return otelhttp.NewHandler(r, cfg.ServiceName)
}
