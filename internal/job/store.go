package job

import (
	"sync"
	"time"
)

// Phase is the lifecycle phase of a job record.
type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhaseActive  Phase = "active"
	PhaseFailed  Phase = "failed"
)

// Record is the stored state of a job. Which fields are meaningful depends
// on the phase: Waiting carries only StartTime, Active adds OperationRef and
// Metadata, Failed adds ErrorMessage.
type Record struct {
	Phase        Phase
	StartTime    time.Time
	OperationRef string
	Metadata     map[string]string
	ErrorMessage string
}

// Store holds job records in memory, keyed by job ID. A single map with a
// phase tag (rather than one map per phase) makes "an ID is in at most one
// phase" hold structurally; the transition methods below are the only
// mutators. Safe for concurrent use.
//
// Records do not survive a process restart. Failed records are retained
// until then; done records are evicted on the poll that observes completion.
type Store struct {
	mu   sync.Mutex
	jobs map[string]Record
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]Record)}
}

// RegisterWaiting inserts a new waiting record. Must run synchronously on
// the submission path, before any background work is scheduled, so a poll
// arriving right after submission never observes "not found".
func (s *Store) RegisterWaiting(id string, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = Record{Phase: PhaseWaiting, StartTime: start}
}

// PromoteToActive moves a waiting job to active, attaching the remote
// operation reference and pipeline metadata. Returns false without mutating
// if the job is no longer waiting.
func (s *Store) PromoteToActive(id, operationRef string, metadata map[string]string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok || rec.Phase != PhaseWaiting {
		return false
	}
	rec.Phase = PhaseActive
	rec.OperationRef = operationRef
	rec.Metadata = metadata
	s.jobs[id] = rec
	return true
}

// PromoteToFailed moves a waiting job to failed, capturing the error message.
// Returns false without mutating if the job is no longer waiting.
func (s *Store) PromoteToFailed(id, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok || rec.Phase != PhaseWaiting {
		return false
	}
	rec.Phase = PhaseFailed
	rec.ErrorMessage = message
	s.jobs[id] = rec
	return true
}

// Lookup returns a copy of the record for id, if present in any phase.
func (s *Store) Lookup(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	return rec, ok
}

// EvictActive removes an active job. Called when a poll observes the remote
// operation as complete; later polls for the same ID report not found.
// Returns false if the job is absent or not active.
func (s *Store) EvictActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok || rec.Phase != PhaseActive {
		return false
	}
	delete(s.jobs, id)
	return true
}

// Counts reports how many jobs sit in each phase.
func (s *Store) Counts() (waiting, active, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.jobs {
		switch rec.Phase {
		case PhaseWaiting:
			waiting++
		case PhaseActive:
			active++
		case PhaseFailed:
			failed++
		}
	}
	return waiting, active, failed
}
