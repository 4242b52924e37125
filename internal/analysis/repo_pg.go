package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const jobColumns = `
id, user_id, document_id, kind, input_text, context, provider, status, results, saved, created_at, updated_at`

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO analysis_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	results, err := marshalJSONB(job.Results)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		job.ID,
		nullable(job.UserID),
		nullable(job.DocumentID),
		job.Kind,
		job.Text,
		job.Context,
		job.Provider,
		job.Status,
		results,
		job.Saved,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID returns a job by its ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	const query = `
SELECT ` + jobColumns + ` FROM analysis_jobs WHERE id = $1`
	return scanJob(r.DB.QueryRowContext(ctx, query, jobID))
}

// SetStatus updates the lifecycle status.
func (r *PGRepo) SetStatus(ctx context.Context, jobID, status string) error {
	const query = `
UPDATE analysis_jobs SET status = $1, updated_at = $2 WHERE id = $3`
	return r.exec(ctx, query, status, time.Now().UTC(), jobID)
}

// SetResults writes the results payload.
func (r *PGRepo) SetResults(ctx context.Context, jobID string, results map[string]any) error {
	payload, err := marshalJSONB(results)
	if err != nil {
		return err
	}
	const query = `
UPDATE analysis_jobs SET results = $1, updated_at = $2 WHERE id = $3`
	return r.exec(ctx, query, payload, time.Now().UTC(), jobID)
}

// SetSaved flips the saved flag.
func (r *PGRepo) SetSaved(ctx context.Context, jobID string, saved bool) error {
	const query = `
UPDATE analysis_jobs SET saved = $1, updated_at = $2 WHERE id = $3`
	return r.exec(ctx, query, saved, time.Now().UTC(), jobID)
}

// ListByUser returns a user's jobs, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT ` + jobColumns + ` FROM analysis_jobs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes a job.
func (r *PGRepo) Delete(ctx context.Context, jobID string) error {
	const query = `DELETE FROM analysis_jobs WHERE id = $1`
	return r.exec(ctx, query, jobID)
}

func (r *PGRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job        Job
		userID     sql.NullString
		documentID sql.NullString
		results    []byte
	)
	err := row.Scan(
		&job.ID,
		&userID,
		&documentID,
		&job.Kind,
		&job.Text,
		&job.Context,
		&job.Provider,
		&job.Status,
		&results,
		&job.Saved,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	job.UserID = userID.String
	job.DocumentID = documentID.String
	if len(results) > 0 {
		if err := json.Unmarshal(results, &job.Results); err != nil {
			return Job{}, err
		}
	}
	return job, nil
}

func marshalJSONB(value map[string]any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
