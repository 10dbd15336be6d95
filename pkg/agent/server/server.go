// Package server exposes the agent and the shop domain over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/trailpost/shopagent/pkg/agent"
	"github.com/trailpost/shopagent/pkg/shop"
)

// Server is the HTTP server for the shopping agent.
type Server struct {
	router   *chi.Mux
	agent    *agent.Agent
	catalog  shop.Catalog
	cart     shop.Cart
	searcher shop.Searcher
	logger   *slog.Logger
}

// Config for the server.
type Config struct {
	CORSOrigins []string
}

// New creates a new HTTP server.
func New(ag *agent.Agent, catalog shop.Catalog, cart shop.Cart, searcher shop.Searcher, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:   chi.NewRouter(),
		agent:    ag,
		catalog:  catalog,
		cart:     cart,
		searcher: searcher,
		logger:   logger,
	}

	s.setupMiddleware(cfg)
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware(cfg Config) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthHandler)

	s.router.Route("/api/v1", func(r chi.Router) {
		// The streaming chat route manages its own deadline; a blanket
		// timeout middleware would cut long SSE streams short.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Post("/chat", s.chatHandler)
			r.Get("/conversations/{id}", s.getConversationHandler)
			r.Get("/products", s.listProductsHandler)
			r.Get("/products/{id}", s.getProductHandler)
			r.Post("/products", s.createProductHandler)
			r.Get("/cart/{userID}", s.getCartHandler)
			r.Post("/search", s.searchHandler)
		})

		r.Post("/chat/stream", s.chatStreamHandler)
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the server.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.router)
}
