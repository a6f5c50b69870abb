package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoforge/internal/job"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Options{
		BaseURL:       server.URL,
		APIKey:        "test-key",
		AnalysisModel: "analysis-model",
		EditModel:     "edit-model",
		VideoModel:    "video-model",
		PollRetries:   2,
	})
	return client, server
}

func TestAnalyzeImage(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/analysis-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req generateContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "describe the annotations", req.Contents[0].Parts[0].Text)
		assert.NotNil(t, req.Contents[0].Parts[1].InlineData)

		json.NewEncoder(w).Encode(generateContentResponse{
			Candidates: []candidate{{Content: content{Parts: []part{{Text: "a red arrow over the door"}}}}},
		})
	}))

	text, err := client.AnalyzeImage(context.Background(), "describe the annotations", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "a red arrow over the door", text)
}

func TestAnalyzeImage_NoCandidates(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateContentResponse{})
	}))

	_, err := client.AnalyzeImage(context.Background(), "p", []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text candidate")
}

func TestEditImage(t *testing.T) {
	t.Parallel()

	edited := []byte("clean-frame-bytes")
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/edit-model:generateContent", r.URL.Path)
		json.NewEncoder(w).Encode(generateContentResponse{
			Candidates: []candidate{{Content: content{Parts: []part{{
				InlineData: &inlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(edited)},
			}}}}},
		})
	}))

	got, err := client.EditImage(context.Background(), "remove annotations", []byte("dirty-frame"))
	require.NoError(t, err)
	assert.Equal(t, edited, got)
}

func TestStartVideoGeneration(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/video-model:predictLongRunning", r.URL.Path)

		var req predictLongRunningRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Instances, 1)
		assert.Equal(t, "animate this", req.Instances[0].Prompt)
		assert.NotNil(t, req.Instances[0].Image)
		assert.NotNil(t, req.Instances[0].LastFrame)
		assert.Equal(t, 6, req.Parameters.DurationSeconds)

		json.NewEncoder(w).Encode(operation{Name: "operations/op-123"})
	}))

	ref, err := client.StartVideoGeneration(context.Background(), job.VideoParams{
		Prompt:          "animate this",
		StartFrame:      []byte("start"),
		EndFrame:        []byte("end"),
		DurationSeconds: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, "operations/op-123", ref)
}

func TestStartVideoGeneration_NoEndFrame(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req predictLongRunningRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req.Instances[0].LastFrame)
		json.NewEncoder(w).Encode(operation{Name: "operations/op-456"})
	}))

	ref, err := client.StartVideoGeneration(context.Background(), job.VideoParams{
		Prompt:          "animate",
		StartFrame:      []byte("start"),
		DurationSeconds: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "operations/op-456", ref)
}

func TestPollOperation_States(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		op   operation
		want job.OperationResult
	}{
		{
			name: "still running",
			op:   operation{Name: "operations/op-1"},
			want: job.OperationResult{Status: job.OperationProcessing},
		},
		{
			name: "done with artifact",
			op: operation{
				Name: "operations/op-1",
				Done: true,
				Response: &operationResponse{
					Videos: []generatedVideo{{GCSURI: "gs://bucket/videos/final.mp4"}},
				},
			},
			want: job.OperationResult{Status: job.OperationDone, ArtifactLocation: "gs://bucket/videos/final.mp4"},
		},
		{
			name: "remote failure",
			op: operation{
				Name:  "operations/op-1",
				Done:  true,
				Error: &operationError{Code: 8, Message: "render quota exhausted"},
			},
			want: job.OperationResult{Status: job.OperationError, Message: "render quota exhausted"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/models/video-model:fetchPredictOperation", r.URL.Path)

				var req fetchOperationRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "operations/op-1", req.OperationName)

				json.NewEncoder(w).Encode(tt.op)
			}))

			got, err := client.PollOperation(context.Background(), "operations/op-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPollOperation_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "backend overloaded", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(operation{Name: "operations/op-1"})
	}))

	got, err := client.PollOperation(context.Background(), "operations/op-1")
	require.NoError(t, err)
	assert.Equal(t, job.OperationProcessing, got.Status)
	assert.Equal(t, int64(2), calls.Load())
}

func TestPollOperation_NoRetryOnClientError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "operation not found", http.StatusNotFound)
	}))

	_, err := client.PollOperation(context.Background(), "operations/gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int64(1), calls.Load(), "4xx must not be retried")
}

func TestReady(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	assert.NoError(t, client.Ready(context.Background()))
}

func TestReady_ServerDown(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Options{BaseURL: url})
	assert.Error(t, client.Ready(context.Background()))
}
