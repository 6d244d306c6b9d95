package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sunwatch/internal/dashboard"
	"github.com/nerrad567/sunwatch/internal/telemetry"
)

// buildRouter creates the chi router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware())
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Handle("/metrics", s.metrics.Handler())
	r.With(gzipMiddleware).Handle("/*", dashboard.Handler(s.cfg.DashboardDir))

	r.Route("/api", func(r chi.Router) {
		// WebSocket needs the raw connection, so it sits outside gzip.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(gzipMiddleware)

			r.Get("/comprehensive", s.handleComprehensive)
			for _, c := range telemetry.ComprehensiveCategories {
				r.Get("/"+string(c), s.handleCategory(c))
			}
			r.Get("/raw", s.handleRaw)
			r.Get("/data", s.handleDashboard)
			r.Get("/export", s.handleExport)

			r.Get("/status", s.handleStatus)
			r.Get("/health", s.handleHealth)
			r.Post("/refresh", s.handleRefresh)

			r.Get("/system/metrics", s.handleSystemMetrics)
		})
	})

	return r
}
