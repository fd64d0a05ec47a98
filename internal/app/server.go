package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Careerlyst/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Careerlyst/internal/api/middlewares"
	"github.com/markdave123-py/Careerlyst/internal/config"
	"github.com/markdave123-py/Careerlyst/internal/services"
)

// Routes holds everything the router needs.
type Routes struct {
	Research  *services.ResearchService
	Companies *services.CompanyService
	DB        handlers.Pinger
	Gatherer  prometheus.Gatherer
	Log       logrus.FieldLogger
}

// NewRouter builds and wires all routes.
func NewRouter(cfg *config.Config, rt Routes) http.Handler {
	researchHandler := handlers.NewResearchHandler(rt.Research, rt.Log)
	companyHandler := handlers.NewCompanyHandler(rt.Companies, rt.Log)
	healthHandler := handlers.NewHealthHandler(rt.DB, rt.Log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(appMiddleware.RequestLogger(rt.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", healthHandler.Healthz)
	if rt.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(rt.Gatherer, promhttp.HandlerOpts{}))
	}

	// API routes
	r.Route("/api", func(api chi.Router) {
		if cfg.JWTSecret != "" {
			api.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))
		} else {
			rt.Log.Warn("JWT_SECRET not set; API routes are unauthenticated")
		}

		api.Route("/companies/{companyId}", func(c chi.Router) {
			c.Get("/", companyHandler.GetCompany)
			c.Put("/", companyHandler.PutCompany)

			c.Get("/research", researchHandler.GetResearch)
			c.Post("/research", researchHandler.Generate)
			c.Post("/research/invalidate", researchHandler.InvalidateAll)
			c.Post("/research/{researchType}/invalidate", researchHandler.InvalidateOne)
		})
	})

	return r
}

// Server wraps the HTTP server instance.
type Server struct {
	httpServer *http.Server
	log        logrus.FieldLogger
}

func NewServer(cfg *config.Config, handler http.Handler, log logrus.FieldLogger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
