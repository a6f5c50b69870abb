package job

import "time"

// Client-facing job status vocabulary. These exact strings are part of the
// API contract; the routing layer maps waiting to 202 and error to 500.
const (
	StatusWaiting    = "waiting"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// Request represents a video generation job submission.
// Immutable once submitted.
type Request struct {
	StartingImage   []byte // required
	EndingImage     []byte // optional, anchors the final frame
	GlobalContext   string
	CustomPrompt    string
	DurationSeconds int
}

// SubmitResponse is returned when a job is accepted.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// Status is the client-facing projection of a job, derived on every poll.
type Status struct {
	Status       string            `json:"status"`
	JobStartTime time.Time         `json:"job_start_time"`
	JobEndTime   *time.Time        `json:"job_end_time,omitempty"`
	VideoURL     string            `json:"video_url,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}
