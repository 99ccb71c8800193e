package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
	"github.com/500lbbicepcurl/Scalysis-public/internal/flagging"
	"github.com/500lbbicepcurl/Scalysis-public/internal/simulation"
)

// Dependencies are the services the API is built on.
type Dependencies struct {
	Repo       domain.Repository
	Cache      domain.Cache
	Bus        domain.EventBus
	Simulation *simulation.Service
	Flagging   *flagging.Service
	Version    string

	// AsyncFlagging is set when a flag worker is consuming the bus.
	AsyncFlagging bool
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, shop domain.ShopifyConfig, deps Dependencies) *Server {
	handler := NewHandler(deps, shop)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware(cfg.AllowOrigins)) // CORS for the embedded admin
	router.Use(RecoverMiddleware)                // Recover from panics
	router.Use(TracingMiddleware)                // OpenTelemetry tracing
	router.Use(LoggingMiddleware)                // Request logging and latency
	router.Use(middleware.RealIP)                // Extract real IP
	router.Use(middleware.Compress(5))           // Gzip compression

	// Operational endpoints (no store required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Handle("/metrics", promhttp.Handler())

	// Webhooks identify the shop by header and are signed, not token-bearing.
	router.Post("/webhooks", handler.Webhook)

	// API routes (store required)
	router.Group(func(r chi.Router) {
		r.Use(StoreMiddleware(shop.APIKey, shop.APISecret))

		// Simulation
		r.Get("/simulation", handler.Simulation)
		r.Get("/curve", handler.Curve)
		r.Get("/audit", handler.Audit)

		// Orders
		r.Get("/orders/flaggable", handler.Flaggable)
		r.Post("/orders", handler.IngestOrders)
		r.Post("/orders/flag", handler.FlagOrders)

		// Store state
		r.Get("/store", handler.GetStore)
		r.Put("/store", handler.UpdateStore)
		r.Get("/economics", handler.GetEconomics)
		r.Put("/economics", handler.UpdateEconomics)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
