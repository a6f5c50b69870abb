package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"videoforge/internal/health"
	"videoforge/internal/job"
	"videoforge/internal/testutil"
)

// stubGateway returns canned results for every call.
type stubGateway struct {
	pollResult job.OperationResult
}

func (s *stubGateway) AnalyzeImage(ctx context.Context, prompt string, image []byte) (string, error) {
	return "arrow annotation", nil
}

func (s *stubGateway) EditImage(ctx context.Context, prompt string, image []byte) ([]byte, error) {
	return image, nil
}

func (s *stubGateway) StartVideoGeneration(ctx context.Context, params job.VideoParams) (string, error) {
	return "operations/op-api-test", nil
}

func (s *stubGateway) PollOperation(ctx context.Context, operationRef string) (job.OperationResult, error) {
	return s.pollResult, nil
}

func newTestService(t *testing.T, gw job.Gateway) *job.Service {
	t.Helper()
	svc := job.NewService(gw, nil, job.QueueConfig{BufferSize: 8, Workers: 1})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Close(ctx)
	})
	return svc
}

// multipartBody builds a video job submission form.
func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for field, data := range files {
		part, err := writer.CreateFormFile(field, field+".png")
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		part.Write(data)
	}
	for field, value := range fields {
		writer.WriteField(field, value)
	}
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func submitJob(t *testing.T, router http.Handler, fields map[string]string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/video", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_SubmitVideoJob(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &stubGateway{pollResult: job.OperationResult{Status: job.OperationProcessing}})
	router := NewRouter(RouterConfig{JobService: svc, HealthChecker: health.NewChecker(nil)})

	w := submitJob(t, router,
		map[string]string{"global_context": "kitchen", "custom_prompt": "pan left", "duration_seconds": "6"},
		map[string][]byte{"files": []byte("start-frame"), "ending_image": []byte("end-frame")},
	)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusAccepted, w.Code, w.Body.String())
	}

	var resp job.SubmitResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.JobID == "" {
		t.Error("Expected a job ID in the response")
	}
}

func TestHandler_SubmitVideoJob_MissingStartingImage(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &stubGateway{})
	router := NewRouter(RouterConfig{JobService: svc, HealthChecker: health.NewChecker(nil)})

	w := submitJob(t, router, map[string]string{"custom_prompt": "pan left"}, nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandler_SubmitVideoJob_BadDuration(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &stubGateway{})
	router := NewRouter(RouterConfig{JobService: svc, HealthChecker: health.NewChecker(nil)})

	w := submitJob(t, router,
		map[string]string{"duration_seconds": "not-a-number"},
		map[string][]byte{"files": []byte("start-frame")},
	)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandler_SubmitVideoJob_WrongContentType(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &stubGateway{})
	router := NewRouter(RouterConfig{JobService: svc, HealthChecker: health.NewChecker(nil)})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/video", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected status %d, got %d", http.StatusUnsupportedMediaType, w.Code)
	}
}

func TestHandler_GetVideoJobStatus_NotFound(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &stubGateway{})
	router := NewRouter(RouterConfig{JobService: svc, HealthChecker: health.NewChecker(nil)})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/video/no-such-job", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestHandler_GetVideoJobStatus_Processing(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &stubGateway{pollResult: job.OperationResult{Status: job.OperationProcessing}})
	router := NewRouter(RouterConfig{JobService: svc, HealthChecker: health.NewChecker(nil)})

	w := submitJob(t, router, nil, map[string][]byte{"files": []byte("start-frame")})
	if w.Code != http.StatusAccepted {
		t.Fatalf("Submission failed: %d %s", w.Code, w.Body.String())
	}
	var resp job.SubmitResponse
	json.NewDecoder(w.Body).Decode(&resp)

	// Poll until the pipeline has handed the job to the remote operation.
	var last *httptest.ResponseRecorder
	testutil.MustWaitFor(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/video/"+resp.JobID, nil)
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)

		var status job.Status
		json.NewDecoder(bytes.NewReader(last.Body.Bytes())).Decode(&status)
		return status.Status == job.StatusProcessing
	})

	if last.Code != http.StatusOK {
		t.Errorf("Expected status %d for a processing job, got %d", http.StatusOK, last.Code)
	}
}

func TestHandler_GetVideoJobStatus_Done(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &stubGateway{pollResult: job.OperationResult{
		Status:           job.OperationDone,
		ArtifactLocation: "gs://renders/final.mp4",
	}})
	router := NewRouter(RouterConfig{JobService: svc, HealthChecker: health.NewChecker(nil)})

	w := submitJob(t, router, nil, map[string][]byte{"files": []byte("start-frame")})
	var resp job.SubmitResponse
	json.NewDecoder(w.Body).Decode(&resp)

	var status job.Status
	var code int
	testutil.MustWaitFor(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/video/"+resp.JobID, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		status = job.Status{}
		json.NewDecoder(rec.Body).Decode(&status)
		code = rec.Code
		return status.Status == job.StatusDone
	})

	if code != http.StatusOK {
		t.Errorf("Expected status %d for a done job, got %d", http.StatusOK, code)
	}
	if status.VideoURL != "https://storage.googleapis.com/renders/final.mp4" {
		t.Errorf("Expected public video URL, got %q", status.VideoURL)
	}
	if status.JobEndTime == nil {
		t.Error("Expected job end time to be set")
	}

	// Completion evicts the record; the next poll is a 404.
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/video/"+resp.JobID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status %d after eviction, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestHandler_Livez(t *testing.T) {
	t.Parallel()
	handler := &Handler{
		health: health.NewChecker(nil),
	}

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()

	handler.Livez(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response health.Response
	json.NewDecoder(w.Body).Decode(&response)

	if response.Status != health.StatusHealthy {
		t.Errorf("Expected status healthy, got %s", response.Status)
	}
}

func TestHandler_Readyz_NoGateway(t *testing.T) {
	t.Parallel()
	handler := &Handler{
		health: health.NewChecker(nil), // No gateway configured
	}

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	handler.Readyz(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	var response health.Response
	json.NewDecoder(w.Body).Decode(&response)

	if response.Status != health.StatusUnhealthy {
		t.Errorf("Expected status unhealthy, got %s", response.Status)
	}
}

func TestMiddleware_Logging(t *testing.T) {
	t.Parallel()
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	handler := LoggingMiddleware()(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !called {
		t.Error("Inner handler was not called")
	}
}

func TestMiddleware_Recovery(t *testing.T) {
	t.Parallel()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware()(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	// Should not panic
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestMiddleware_Auth(t *testing.T) {
	t.Parallel()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		apiKey     string
		authHeader string
		wantCode   int
	}{
		{"no key configured", "", "", http.StatusOK},
		{"missing header", "secret", "", http.StatusUnauthorized},
		{"wrong scheme", "secret", "Basic secret", http.StatusUnauthorized},
		{"wrong token", "secret", "Bearer wrong", http.StatusUnauthorized},
		{"valid token", "secret", "Bearer secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler := AuthMiddleware(tt.apiKey)(inner)

			req := httptest.NewRequest(http.MethodGet, "/api/jobs/video/x", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}

func TestMiddleware_CORS_Preflight(t *testing.T) {
	t.Parallel()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Inner handler should not run for preflight")
	})

	handler := CORSMiddleware()(inner)

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs/video", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS headers on preflight response")
	}
}
