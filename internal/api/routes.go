package api

import (
	"net/http"

	"videoforge/internal/health"
	"videoforge/internal/job"
	"videoforge/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	JobService     *job.Service
	Metrics        *observability.Metrics
	HealthChecker  *health.Checker
	APIKey         string
	MaxUploadBytes int64
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.JobService, cfg.Metrics, cfg.HealthChecker, cfg.MaxUploadBytes)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Job endpoints - auth required
	authMiddleware := AuthMiddleware(cfg.APIKey)
	mux.Handle("POST /api/jobs/video", authMiddleware(http.HandlerFunc(handler.SubmitVideoJob)))
	mux.Handle("GET /api/jobs/video/{jobId}", authMiddleware(http.HandlerFunc(handler.GetVideoJobStatus)))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
