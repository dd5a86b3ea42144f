// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"

	"buzztrack/internal/config"
	"buzztrack/internal/domain/trend"
	"buzztrack/internal/observability"
	"buzztrack/internal/server/handlers"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.ServerConfig,
	trendCfg config.TrendConfig,
	detector trend.Detector,
	snapshots trend.SnapshotSource,
	natsConn *nats.Conn,
	metrics *observability.Metrics,
) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	if metrics != nil {
		router.Use(metricsMiddleware(metrics))
	}

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	trendHandler := handlers.NewTrendHandler(snapshots, detector, trendCfg.TrendingThreshold, trendCfg.DisplayLimit)

	// Routes
	router.Route("/api", func(r chi.Router) {
		r.Get("/health", trendHandler.Health)

		r.Get("/trending", trendHandler.GetTrending)
		r.Get("/trending/all", trendHandler.GetAllTrending)
		r.Get("/top_ticker", trendHandler.GetTopTicker)
		r.Get("/chart_data", trendHandler.GetChartData)

		r.Post("/refresh", trendHandler.RefreshNow)
		r.Post("/registry/reload", trendHandler.ReloadRegistry)
	})

	// WebSocket endpoint for live snapshot updates
	router.Get("/ws/trending", handlers.TrendWebSocketHandler(snapshots, natsConn, trendCfg.EventsTopic, trendCfg.TrendingThreshold))

	if metrics != nil {
		router.Handle("/metrics", metrics.Handler())
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// metricsMiddleware counts requests per matched route and status code
func metricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		})
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
