// Package jobs tracks asynchronous scrape jobs submitted through the admin
// API. The registry is a process-lifetime mutex map: job state is not
// durable and restarting the service forgets it.
package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

// ErrNotFound means no job with the given ID exists in this process.
var ErrNotFound = errors.New("jobs: job not found")

// State is a job's lifecycle phase.
type State string

// Job lifecycle phases.
const (
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Job is one asynchronous scrape request.
type Job struct {
	ID         string          `json:"id"`
	BuildingID int64           `json:"building_id"`
	State      State           `json:"state"`
	Outcome    *scrape.Outcome `json:"outcome,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// Registry holds jobs for the life of the process.
type Registry struct {
	mu    sync.Mutex
	jobs  map[string]Job
	clock scrape.Clock
}

// NewRegistry returns an empty Registry. clock may be nil.
func NewRegistry(clock scrape.Clock) *Registry {
	if clock == nil {
		clock = scrape.SystemClock{}
	}
	return &Registry{jobs: make(map[string]Job), clock: clock}
}

// Start registers a new running job and returns it.
func (r *Registry) Start(buildingID int64) Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := Job{
		ID:         uuid.NewString(),
		BuildingID: buildingID,
		State:      StateRunning,
		StartedAt:  r.clock.Now(),
	}
	r.jobs[j.ID] = j
	return j
}

// Complete marks a job done with its outcome.
func (r *Registry) Complete(id string, out scrape.Outcome) {
	r.finish(id, func(j *Job) {
		j.State = StateDone
		j.Outcome = &out
	})
}

// Fail marks a job failed.
func (r *Registry) Fail(id string, err error) {
	r.finish(id, func(j *Job) {
		j.State = StateFailed
		if err != nil {
			j.Error = err.Error()
		}
	})
}

// Get returns a job by ID.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (r *Registry) finish(id string, apply func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return
	}
	apply(&j)
	at := r.clock.Now()
	j.FinishedAt = &at
	r.jobs[id] = j
}
