// Package api serves the map rebuild pipeline over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/tqgap/internal/boundary"
	"github.com/sells-group/tqgap/internal/choropleth"
	"github.com/sells-group/tqgap/internal/metrics"
	"github.com/sells-group/tqgap/internal/palette"
)

// SessionHeader carries the session id on map responses.
const SessionHeader = "X-Session-ID"

// Server holds the handlers' dependencies.
type Server struct {
	builder  *choropleth.Builder
	sessions *choropleth.Sessions
	presets  palette.Presets
	cache    *boundary.MemoryCache
}

// Options configures optional Server dependencies.
type Options struct {
	Presets palette.Presets
	// Cache, when set, is reported at /api/cache/stats.
	Cache *boundary.MemoryCache
}

// NewServer creates a Server.
func NewServer(b *choropleth.Builder, sessions *choropleth.Sessions, opts Options) *Server {
	presets := opts.Presets
	if presets == nil {
		presets = palette.Presets{"default": palette.Default}
	}
	return &Server{builder: b, sessions: sessions, presets: presets, cache: opts.Cache}
}

// Router builds the HTTP routes.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", SessionHeader},
		ExposedHeaders: []string{SessionHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/options", s.handleOptions)
		r.Get("/bins", s.handleBins)
		r.Get("/title", s.handleTitle)
		r.Post("/map", s.handleMap)
		r.Get("/camera", s.handleCamera)
		r.Get("/cache/stats", s.handleCacheStats)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
