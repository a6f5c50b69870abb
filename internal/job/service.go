package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"videoforge/internal/apperrors"
	"videoforge/internal/observability"
	"videoforge/internal/storage"
)

// Validation limits
const (
	maxImageBytes      = 10 << 20 // per frame
	maxPromptLength    = 4096
	maxDurationSecs    = 8 // model-side ceiling for a single clip
	defaultDurationSec = 4
)

// Service drives jobs from submission to a terminal state and answers
// status polls. Submission registers the job as waiting before the pipeline
// is scheduled, so a returned job ID is always pollable.
type Service struct {
	gateway Gateway
	store   *Store
	queue   *Queue
	metrics *observability.Metrics

	now func() time.Time // swapped in tests
}

// NewService creates a job service backed by gw. metrics may be nil.
func NewService(gw Gateway, metrics *observability.Metrics, qcfg QueueConfig) *Service {
	s := &Service{
		gateway: gw,
		store:   NewStore(),
		metrics: metrics,
		now:     time.Now,
	}
	var qm QueueMetrics
	if metrics != nil {
		qm = metrics
	}
	s.queue = NewQueue(qcfg, s.runPipeline, qm)
	return s
}

// Submit validates and accepts a new job, returning its ID immediately.
// The pipeline runs in the background; poll Status for progress.
func (s *Service) Submit(ctx context.Context, req *Request) (string, error) {
	applyDefaults(req)
	if err := validate(req); err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	logger := slog.With("jobId", jobID)

	// Waiting must be registered before the pipeline is scheduled, so a
	// poll racing this submission observes "waiting" rather than a 404.
	s.store.RegisterWaiting(jobID, s.now())

	if s.metrics != nil {
		s.metrics.RecordJobCreated(ctx)
	}

	if err := s.queue.Enqueue(jobID, req); err != nil {
		// The caller still gets a pollable ID; the job just lands in a
		// terminal error state instead of running.
		s.store.PromoteToFailed(jobID, err.Error())
		if s.metrics != nil {
			s.metrics.RecordJobFailed(ctx, 0)
		}
		logger.Warn("Job rejected by pipeline queue", "error", err)
		return jobID, nil
	}

	logger.Info("Video job accepted",
		"durationSeconds", req.DurationSeconds,
		"hasEndingImage", len(req.EndingImage) > 0,
	)
	return jobID, nil
}

// runPipeline executes one job on a queue worker. Failures never propagate;
// they are captured into the store as a failed record.
func (s *Service) runPipeline(jobID string, req *Request) {
	// Detached from the submission request; the pipeline runs to completion
	// or failure with no client-initiated cancellation.
	ctx := context.Background()
	logger := slog.With("jobId", jobID)
	start := s.now()

	operationRef, annotation, err := s.generate(ctx, req)
	if err != nil {
		s.store.PromoteToFailed(jobID, err.Error())
		if s.metrics != nil {
			s.metrics.RecordJobFailed(ctx, s.now().Sub(start).Seconds())
		}
		logger.Error("Video pipeline failed", "error", err)
		return
	}

	// Only the operation reference is kept, not the remote operation
	// object; polling re-fetches state from the gateway.
	metadata := map[string]string{"annotation_description": annotation}
	if !s.store.PromoteToActive(jobID, operationRef, metadata) {
		logger.Warn("Job no longer waiting, discarding pipeline result", "operation", operationRef)
		return
	}
	logger.Info("Video generation accepted", "operation", operationRef)
}

// Status answers a poll for jobID. Active jobs trigger a fresh gateway
// query; a completed render is translated to a public URL and evicted, so
// the next poll for the same ID reports not found.
func (s *Service) Status(ctx context.Context, jobID string) (*Status, error) {
	rec, ok := s.store.Lookup(jobID)
	if !ok {
		return nil, apperrors.NotFound("job", jobID)
	}

	switch rec.Phase {
	case PhaseWaiting:
		return &Status{Status: StatusWaiting, JobStartTime: rec.StartTime}, nil
	case PhaseFailed:
		return &Status{
			Status:       StatusError,
			JobStartTime: rec.StartTime,
			ErrorMessage: rec.ErrorMessage,
		}, nil
	}

	result, err := s.gateway.PollOperation(ctx, rec.OperationRef)
	if err != nil {
		// Transient gateway trouble is not a job failure: the job stays
		// active and the caller can poll again.
		return nil, apperrors.Unavailable("gateway.pollOperation", err)
	}

	st := &Status{
		Status:       result.Status,
		JobStartTime: rec.StartTime,
		Metadata:     rec.Metadata,
	}

	switch result.Status {
	case OperationDone:
		end := s.now()
		st.Status = StatusDone
		st.JobEndTime = &end
		st.VideoURL = storage.PublicURL(result.ArtifactLocation)
		s.store.EvictActive(jobID)
		if s.metrics != nil {
			s.metrics.RecordJobCompleted(ctx, end.Sub(rec.StartTime).Seconds())
		}
		slog.Info("Video job completed", "jobId", jobID, "videoUrl", st.VideoURL)
	case OperationError:
		st.Status = StatusError
		st.ErrorMessage = result.Message
	default:
		st.Status = StatusProcessing
	}

	return st, nil
}

// Close stops accepting pipelines and drains in-flight work.
func (s *Service) Close(ctx context.Context) error {
	return s.queue.Close(ctx)
}

// QueueStats exposes pipeline queue counters.
func (s *Service) QueueStats() QueueStats {
	return s.queue.Stats()
}

// applyDefaults sets default values for unspecified request fields.
func applyDefaults(req *Request) {
	if req.DurationSeconds <= 0 {
		req.DurationSeconds = defaultDurationSec
	}
}

// validate checks a job request. Does not modify the request.
func validate(req *Request) error {
	if len(req.StartingImage) == 0 {
		return apperrors.Validation("files", "starting image is required")
	}
	if len(req.StartingImage) > maxImageBytes {
		return apperrors.Validation("files", fmt.Sprintf("starting image exceeds maximum of %d bytes", maxImageBytes))
	}
	if len(req.EndingImage) > maxImageBytes {
		return apperrors.Validation("ending_image", fmt.Sprintf("ending image exceeds maximum of %d bytes", maxImageBytes))
	}
	if req.DurationSeconds > maxDurationSecs {
		return apperrors.Validation("duration_seconds", fmt.Sprintf("duration exceeds maximum of %d seconds", maxDurationSecs))
	}
	if len(req.CustomPrompt) > maxPromptLength {
		return apperrors.Validation("custom_prompt", fmt.Sprintf("prompt exceeds maximum length of %d", maxPromptLength))
	}
	if len(req.GlobalContext) > maxPromptLength {
		return apperrors.Validation("global_context", fmt.Sprintf("context exceeds maximum length of %d", maxPromptLength))
	}
	return nil
}
