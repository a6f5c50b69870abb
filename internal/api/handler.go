// Package api provides the HTTP API handlers and routing for the video jobs service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"videoforge/internal/apperrors"
	"videoforge/internal/health"
	"videoforge/internal/job"
	"videoforge/internal/observability"
)

// defaultMaxUploadBytes limits the multipart request body to prevent
// memory exhaustion when no explicit limit is configured.
const defaultMaxUploadBytes = 32 << 20 // 32 MB

// Handler contains HTTP handlers for the video jobs API
type Handler struct {
	svc            *job.Service
	metrics        *observability.Metrics
	health         *health.Checker
	maxUploadBytes int64
}

// NewHandler creates a new API handler
func NewHandler(svc *job.Service, metrics *observability.Metrics, healthChecker *health.Checker, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		svc:            svc,
		metrics:        metrics,
		health:         healthChecker,
		maxUploadBytes: maxUploadBytes,
	}
}

// SubmitVideoJob handles POST /api/jobs/video.
// Accepts a multipart form with the starting image under "files", an
// optional "ending_image", and text fields controlling the generation.
// Responds 202 with the job ID; progress is reported by GetVideoJobStatus.
func (h *Handler) SubmitVideoJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	req, err := parseVideoJobForm(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	jobID, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, job.SubmitResponse{JobID: jobID})
}

// GetVideoJobStatus handles GET /api/jobs/video/{jobId}.
// Status maps onto HTTP codes: waiting is 202, a failed job is 500,
// processing and done are 200.
func (h *Handler) GetVideoJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	if jobID == "" {
		h.writeError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	status, err := h.svc.Status(r.Context(), jobID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	code := http.StatusOK
	switch status.Status {
	case job.StatusWaiting:
		code = http.StatusAccepted
	case job.StatusError:
		code = http.StatusInternalServerError
	}

	h.writeJSON(w, code, status)
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 if the service is ready to accept traffic.
// Returns 503 if the generation gateway is unreachable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// parseVideoJobForm builds a job request from the parsed multipart form.
func parseVideoJobForm(r *http.Request) (*job.Request, error) {
	starting, err := readFormFile(r, "files")
	if err != nil {
		return nil, err
	}
	if starting == nil {
		return nil, apperrors.Validation("files", "starting image is required")
	}

	ending, err := readFormFile(r, "ending_image")
	if err != nil {
		return nil, err
	}

	req := &job.Request{
		StartingImage: starting,
		EndingImage:   ending,
		GlobalContext: r.FormValue("global_context"),
		CustomPrompt:  r.FormValue("custom_prompt"),
	}

	if raw := r.FormValue("duration_seconds"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apperrors.Validation("duration_seconds", "must be an integer")
		}
		req.DurationSeconds = seconds
	}

	return req, nil
}

// readFormFile reads the first file uploaded under the given field.
// Returns nil bytes when the field is absent.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperrors.Validation(field, err.Error())
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.Validation(field, "failed to read uploaded file: "+err.Error())
	}
	return data, nil
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError handles errors from service layer with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}
