package analysis

import "context"

// Repo defines persistence operations for analysis jobs.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	SetStatus(ctx context.Context, jobID, status string) error
	SetResults(ctx context.Context, jobID string, results map[string]any) error
	SetSaved(ctx context.Context, jobID string, saved bool) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error)
	Delete(ctx context.Context, jobID string) error
}
