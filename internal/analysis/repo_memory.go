package analysis

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Job
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Job)}
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = job
	return nil
}

// GetByID returns a job by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// SetStatus updates the lifecycle status.
func (r *MemoryRepo) SetStatus(ctx context.Context, jobID, status string) error {
	return r.update(ctx, jobID, func(job *Job) {
		job.Status = status
	})
}

// SetResults writes the results payload.
func (r *MemoryRepo) SetResults(ctx context.Context, jobID string, results map[string]any) error {
	return r.update(ctx, jobID, func(job *Job) {
		job.Results = results
	})
}

// SetSaved flips the saved flag.
func (r *MemoryRepo) SetSaved(ctx context.Context, jobID string, saved bool) error {
	return r.update(ctx, jobID, func(job *Job) {
		job.Saved = saved
	})
}

// ListByUser returns a user's jobs, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var jobs []Job
	for _, job := range r.byID {
		if job.UserID == userID {
			jobs = append(jobs, job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if offset >= len(jobs) {
		return nil, nil
	}
	jobs = jobs[offset:]
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Delete removes a job.
func (r *MemoryRepo) Delete(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[jobID]; !ok {
		return ErrNotFound
	}
	delete(r.byID, jobID)
	return nil
}

func (r *MemoryRepo) update(ctx context.Context, jobID string, apply func(*Job)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	apply(&job)
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}
