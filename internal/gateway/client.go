// Package gateway implements the remote generation gateway over the
// Vertex-style generative media REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"videoforge/internal/config"
	"videoforge/internal/job"
	"videoforge/pkg/backoff"
)

// Options controls how the gateway client is configured.
type Options struct {
	BaseURL       string
	APIKey        string
	AnalysisModel string // multimodal text model for annotation analysis
	EditModel     string // image-to-image model for frame cleanup
	VideoModel    string // long-running video generation model
	HTTPClient    *http.Client
	PollRetries   int // extra attempts for the idempotent operation poll
}

// LoadOptionsFromEnv loads gateway configuration from environment variables.
func LoadOptionsFromEnv() Options {
	return Options{
		BaseURL:       config.GetEnv("GENAI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		APIKey:        config.GetSecretFile(config.GetEnv("GENAI_API_KEY_FILE", "")),
		AnalysisModel: config.GetEnv("GENAI_ANALYSIS_MODEL", "gemini-2.5-flash"),
		EditModel:     config.GetEnv("GENAI_EDIT_MODEL", "gemini-2.5-flash-image"),
		VideoModel:    config.GetEnv("GENAI_VIDEO_MODEL", "veo-3.1-generate-preview"),
		HTTPClient:    &http.Client{Timeout: config.GetDurationEnv("GENAI_HTTP_TIMEOUT", 60 * time.Second)},
		PollRetries:   config.GetIntEnv("GENAI_POLL_RETRIES", 2),
	}
}

// Client talks to the generative media API over plain HTTP. Image calls are
// synchronous; video generation returns an operation name that is polled via
// fetchPredictOperation.
type Client struct {
	baseURL       string
	apiKey        string
	analysisModel string
	editModel     string
	videoModel    string
	httpClient    *http.Client
	pollRetries   int
	logger        *slog.Logger
}

// NewClient creates a gateway client. Zero-value options get defaults.
func NewClient(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.PollRetries < 0 {
		opts.PollRetries = 0
	}
	return &Client{
		baseURL:       opts.BaseURL,
		apiKey:        opts.APIKey,
		analysisModel: opts.AnalysisModel,
		editModel:     opts.EditModel,
		videoModel:    opts.VideoModel,
		httpClient:    opts.HTTPClient,
		pollRetries:   opts.PollRetries,
		logger:        slog.With("component", "gateway"),
	}
}

// AnalyzeImage describes the given image according to prompt.
func (c *Client) AnalyzeImage(ctx context.Context, prompt string, image []byte) (string, error) {
	resp, err := c.generateContent(ctx, c.analysisModel, prompt, image)
	if err != nil {
		return "", err
	}
	for _, part := range resp.parts() {
		if part.Text != "" {
			return part.Text, nil
		}
	}
	return "", fmt.Errorf("gateway returned no text candidate")
}

// EditImage returns a transformed copy of the given image.
func (c *Client) EditImage(ctx context.Context, prompt string, image []byte) ([]byte, error) {
	resp, err := c.generateContent(ctx, c.editModel, prompt, image)
	if err != nil {
		return nil, err
	}
	for _, part := range resp.parts() {
		if part.InlineData != nil {
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode edited image: %w", err)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("gateway returned no image candidate")
}

// StartVideoGeneration submits a render and returns the operation name.
func (c *Client) StartVideoGeneration(ctx context.Context, params job.VideoParams) (string, error) {
	instance := predictInstance{
		Prompt: params.Prompt,
		Image:  newInlineImage(params.StartFrame),
	}
	if len(params.EndFrame) > 0 {
		instance.LastFrame = newInlineImage(params.EndFrame)
	}

	reqBody := predictLongRunningRequest{
		Instances:  []predictInstance{instance},
		Parameters: predictParameters{DurationSeconds: params.DurationSeconds},
	}

	var op operation
	url := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, c.videoModel)
	if err := c.post(ctx, url, reqBody, &op); err != nil {
		return "", err
	}
	if op.Name == "" {
		return "", fmt.Errorf("gateway returned no operation name")
	}
	return op.Name, nil
}

// PollOperation reports the current state of a render. The request is
// idempotent, so transport and server errors are retried with backoff.
func (c *Client) PollOperation(ctx context.Context, operationRef string) (job.OperationResult, error) {
	url := fmt.Sprintf("%s/models/%s:fetchPredictOperation", c.baseURL, c.videoModel)
	reqBody := fetchOperationRequest{OperationName: operationRef}

	var op operation
	var lastErr error
	for attempt := 0; attempt <= c.pollRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return job.OperationResult{}, ctx.Err()
			case <-time.After(backoff.Exponential(attempt, nil)):
			}
		}

		lastErr = c.post(ctx, url, reqBody, &op)
		if lastErr == nil {
			return translateOperation(op), nil
		}
		if isClientError(lastErr) {
			break
		}
		c.logger.Warn("Operation poll failed, retrying", "operation", operationRef, "attempt", attempt+1, "error", lastErr)
	}
	return job.OperationResult{}, lastErr
}

// Ready checks that the remote API is reachable.
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("gateway unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// translateOperation maps the wire operation onto the core's result model.
func translateOperation(op operation) job.OperationResult {
	switch {
	case op.Done && op.Error != nil:
		return job.OperationResult{Status: job.OperationError, Message: op.Error.Message}
	case op.Done:
		result := job.OperationResult{Status: job.OperationDone}
		if op.Response != nil && len(op.Response.Videos) > 0 {
			result.ArtifactLocation = op.Response.Videos[0].GCSURI
		}
		return result
	default:
		return job.OperationResult{Status: job.OperationProcessing}
	}
}

// generateContent issues a single-turn request with a text prompt and an
// inline image to the given model.
func (c *Client) generateContent(ctx context.Context, model, prompt string, image []byte) (*generateContentResponse, error) {
	reqBody := generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: prompt},
				{InlineData: newInlineData(image)},
			},
		}},
	}

	var resp generateContentResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	if err := c.post(ctx, url, reqBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post sends a JSON request and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{Code: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	return json.Unmarshal(body, out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}
}

// statusError is a non-2xx HTTP response from the gateway.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway returned status %d", e.Code)
	}
	return fmt.Sprintf("gateway returned status %d: %s", e.Code, e.Body)
}

// isClientError reports whether err is a 4xx response, which retrying
// cannot fix.
func isClientError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Verify Client implements the core's gateway contract
var _ job.Gateway = (*Client)(nil)
