package avatar

import (
	"sync"
	"time"

	"memory-portal/internal/models"
)

// Registry is the process-lifetime mapping from job id to current job
// state. The Orchestrator is the only writer; everything else reads.
// Once a job is in a terminal state its record never changes again, even
// if a poll result was still in flight when the state was recorded.
//
// Entries are never evicted; the registry lives as long as the process.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*models.VideoJob
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*models.VideoJob)}
}

// Register adds a freshly created job. An existing entry for the same
// job id is left untouched.
func (r *Registry) Register(job models.VideoJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.JobID]; ok {
		return
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = job.CreatedAt
	r.jobs[job.JobID] = &job
}

// Upsert records a status observation for the job. It reports whether
// the write was applied: writes against an already-terminal record are
// discarded so the first terminal state sticks.
func (r *Registry) Upsert(jobID string, status models.JobStatus, resultURL string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		job = &models.VideoJob{JobID: jobID, CreatedAt: time.Now().UTC()}
		r.jobs[jobID] = job
	}
	if job.Status.Terminal() {
		return false
	}
	job.Status = status
	job.ResultURL = resultURL
	job.UpdatedAt = time.Now().UTC()
	return true
}

// RecordAttempt bumps the job's poll attempt counter and returns the new
// count. Attempts against a terminal record are not counted.
func (r *Registry) RecordAttempt(jobID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status.Terminal() {
		if ok {
			return job.Attempts
		}
		return 0
	}
	job.Attempts++
	job.UpdatedAt = time.Now().UTC()
	return job.Attempts
}

// Get returns a copy of the job's current record.
func (r *Registry) Get(jobID string) (models.VideoJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return models.VideoJob{}, false
	}
	return *job, true
}

// All returns a snapshot of every tracked job, keyed by job id.
func (r *Registry) All() map[string]models.VideoJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.VideoJob, len(r.jobs))
	for id, job := range r.jobs {
		out[id] = *job
	}
	return out
}
