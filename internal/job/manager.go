// Package job tracks the transcoding jobs of a batch run, providing
// create/remove/list operations and per-job progress snapshots.
package job

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle position of a job.
type State string

const (
	StateRunning  State = "running"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateCanceled State = "canceled"
)

// Job is one transcoding job. Progress is updated by the goroutine running
// the job and read by anyone holding a Snapshot.
type Job struct {
	ID        string
	Output    string
	StartedAt time.Time

	mu        sync.Mutex
	processed float64
	total     float64
	state     State
	err       error
	done      chan struct{}
}

// Snapshot is a point-in-time copy of a job's progress.
type Snapshot struct {
	ID        string    `json:"id"`
	Output    string    `json:"output"`
	StartedAt time.Time `json:"startedAt"`
	State     State     `json:"state"`
	Processed float64   `json:"processed"`
	Total     float64   `json:"total"`
	Error     string    `json:"error,omitempty"`
}

// Update records how many seconds of output were written out of total.
func (j *Job) Update(processed, total float64) {
	j.mu.Lock()
	j.processed = processed
	j.total = total
	j.mu.Unlock()
}

// Snapshot returns the job's current progress.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := Snapshot{
		ID:        j.ID,
		Output:    j.Output,
		StartedAt: j.StartedAt,
		State:     j.state,
		Processed: j.processed,
		Total:     j.total,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}

// Done is closed once the job is removed from its manager.
func (j *Job) Done() <-chan struct{} { return j.done }

func (j *Job) finish(state State, err error) {
	j.mu.Lock()
	j.state = state
	j.err = err
	j.mu.Unlock()
}

// Manager manages the lifecycle of running jobs.
type Manager struct {
	log  *slog.Logger
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewManager creates a new job manager. If log is nil, slog.Default() is used.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:  log.With("component", "job-manager"),
		jobs: make(map[string]*Job),
	}
}

// Create registers a new job writing output. An empty id gets a random
// one. Returns the job and true if created, or nil and false if a job with
// this id already exists.
func (m *Manager) Create(id, output string) (*Job, bool) {
	if id == "" {
		id = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; ok {
		m.log.Warn("job already exists, rejecting duplicate", "id", id)
		return nil, false
	}

	j := &Job{
		ID:        id,
		Output:    output,
		StartedAt: time.Now(),
		state:     StateRunning,
		done:      make(chan struct{}),
	}

	m.jobs[id] = j
	m.log.Info("job created", "id", id, "output", output)
	return j, true
}

// Get returns the job with id.
func (m *Manager) Get(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	return j, ok
}

// Finish records the outcome of a job and keeps it listed.
func (m *Manager) Finish(id string, state State, err error) {
	j, ok := m.Get(id)
	if !ok {
		return
	}
	j.finish(state, err)
	if err != nil {
		m.log.Warn("job finished", "id", id, "state", state, "error", err)
		return
	}
	m.log.Info("job finished", "id", id, "state", state)
}

// Remove removes a job from the manager.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if ok {
		delete(m.jobs, id)
	}
	m.mu.Unlock()

	if ok {
		close(j.done)
		m.log.Info("job removed", "id", id)
	}
}

// List returns all jobs, oldest first.
func (m *Manager) List() []*Job {
	m.mu.RLock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].StartedAt.Equal(jobs[b].StartedAt) {
			return jobs[a].ID < jobs[b].ID
		}
		return jobs[a].StartedAt.Before(jobs[b].StartedAt)
	})
	return jobs
}

// Snapshots returns the progress of every job, oldest first.
func (m *Manager) Snapshots() []Snapshot {
	jobs := m.List()
	out := make([]Snapshot, len(jobs))
	for i, j := range jobs {
		out[i] = j.Snapshot()
	}
	return out
}
