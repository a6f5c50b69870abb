// Package job implements the video-generation job lifecycle: submission,
// background pipeline execution, and status polling.
package job

import "context"

// Operation states reported by the remote generation gateway. "done" and
// "error" pass through to the client-facing status vocabulary unchanged.
const (
	OperationProcessing = "processing"
	OperationDone       = "done"
	OperationError      = "error"
)

// VideoParams carries the inputs for a video generation call.
type VideoParams struct {
	Prompt          string
	StartFrame      []byte
	EndFrame        []byte // optional, anchors the final frame
	DurationSeconds int
}

// OperationResult is a snapshot of a long-running generation operation.
type OperationResult struct {
	Status           string // processing, done, or error
	ArtifactLocation string // storage-scheme URI, set once done
	Message          string // failure detail, set on error
}

// Gateway defines the interface to the remote generative-media API.
// Implementations wrap a long-running backend: image calls return results
// directly, video generation returns an operation reference that must be
// polled for completion.
//
// All methods may fail with network, quota, or invalid-input errors; the
// pipeline treats any such failure as terminal for the job.
type Gateway interface {
	// AnalyzeImage describes the given image according to prompt.
	AnalyzeImage(ctx context.Context, prompt string, image []byte) (string, error)

	// EditImage returns a transformed copy of the given image.
	EditImage(ctx context.Context, prompt string, image []byte) ([]byte, error)

	// StartVideoGeneration submits a render and returns an opaque operation
	// reference immediately. The render itself is long-running and remote.
	StartVideoGeneration(ctx context.Context, params VideoParams) (string, error)

	// PollOperation reports the current state of a previously started render.
	// Polling is idempotent and safe to retry.
	PollOperation(ctx context.Context, operationRef string) (OperationResult, error)
}
