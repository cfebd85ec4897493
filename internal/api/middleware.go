package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rafaelmorch/platform-sports/internal/auth"
)

// RouterConfig holds the cross-cutting settings applied around the API mux.
type RouterConfig struct {
	Auth              auth.Config
	CORSAllowedOrigin string
	Logger            *slog.Logger
}

// NewRouter registers the handler routes and wraps them with CORS, authentication and access logging.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	authMiddleware := auth.NewMiddleware(cfg.Auth)
	return cors(cfg.CORSAllowedOrigin, authMiddleware.Wrap(accessLog(logger, mux)))
}

func cors(origin string, next http.Handler) http.Handler {
	if origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		// Browsers refuse credentialed responses for a wildcard origin.
		if origin != "*" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func accessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/healthz" {
			return
		}
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"user_id", auth.SubjectFromContext(r.Context()),
		)
	})
}
