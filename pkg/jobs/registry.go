package jobs

import "sync"

// Registry is the concurrent-safe job table. A single mutex guards the
// whole map; critical sections are short in-memory operations, so the
// coarse lock is deliberate.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
	}
}

// Create stores a new job. The registry takes ownership of the value.
func (r *Registry) Create(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// Update applies mutate to the job under the lock. It reports whether the
// job exists.
func (r *Registry) Update(id string, mutate func(*Job)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	mutate(job)
	return true
}

// Get returns a snapshot copy of the job.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Take returns a snapshot copy of the job and, when remove reports true
// for it, deletes the entry in the same critical section. This is the
// read-once-destructive delivery used for terminal results: a concurrent
// second reader observes NotFound, never a duplicate delivery.
func (r *Registry) Take(id string, remove func(Job) bool) (job Job, ok, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[id]
	if !ok {
		return Job{}, false, false
	}

	job = *stored
	if remove(job) {
		delete(r.jobs, id)
		removed = true
	}
	return job, true, removed
}

// Delete removes the job if present.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
