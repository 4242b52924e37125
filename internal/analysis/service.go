package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"textlens-backend/internal/access"
	"textlens-backend/internal/broadcast"
	"textlens-backend/internal/credits"
	"textlens-backend/internal/provider"
	"textlens-backend/internal/shared/telemetry"
)

// maxInputBytes bounds pasted analysis input.
const maxInputBytes = 512 * 1024

// DocumentSource resolves extracted text for an uploaded document.
type DocumentSource interface {
	GetText(ctx context.Context, userID, documentID string) (string, error)
}

// Service contains intake and read-side business logic for analysis jobs.
// Runs execute asynchronously: Create returns once the pending job exists and
// the orchestrator goroutine has been launched.
type Service struct {
	Repo         Repo
	Credits      *credits.Service
	Registry     *broadcast.Registry
	Orchestrator *Orchestrator
	Documents    DocumentSource
}

// CreateInput carries the fields of an analysis request.
type CreateInput struct {
	UserID     string
	Kind       string
	Text       string
	DocumentID string
	Context    string
	Provider   string
}

// Create validates the request, stores a pending job, and starts the run
// without awaiting it.
func (s *Service) Create(ctx context.Context, input CreateInput) (Job, error) {
	if !KnownKind(input.Kind) {
		return Job{}, fmt.Errorf("%w: %s", ErrUnknownKind, input.Kind)
	}

	text := input.Text
	if strings.TrimSpace(text) == "" && input.DocumentID != "" {
		if s.Documents == nil {
			return Job{}, errors.New("document analysis is not configured")
		}
		extracted, err := s.Documents.GetText(ctx, input.UserID, input.DocumentID)
		if err != nil {
			return Job{}, fmt.Errorf("document text id=%s: %w", input.DocumentID, err)
		}
		text = extracted
	}
	if strings.TrimSpace(text) == "" {
		return Job{}, fmt.Errorf("%w: text or documentId is required", ErrInvalidInput)
	}
	if len(text) > maxInputBytes {
		return Job{}, fmt.Errorf("%w: text exceeds the maximum input size", ErrInvalidInput)
	}

	now := time.Now().UTC()
	job := Job{
		ID:         uuid.NewString(),
		UserID:     input.UserID,
		DocumentID: input.DocumentID,
		Kind:       input.Kind,
		Text:       text,
		Context:    input.Context,
		Provider:   string(provider.Normalize(input.Provider)),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		return Job{}, err
	}

	go s.runAsync(job.ID)

	return job, nil
}

// runAsync executes the orchestrator and turns its failure into a best-effort
// error broadcast. The orchestrator has already persisted the terminal state
// by the time an error surfaces here.
func (s *Service) runAsync(jobID string) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("analysis.run_panic", map[string]any{
				"job_id": jobID,
				"panic":  fmt.Sprint(rec),
			})
			s.Registry.Emit(jobID, broadcast.NewError(fmt.Sprintf("internal error: %v", rec)))
		}
	}()

	if err := s.Orchestrator.Run(context.Background(), jobID); err != nil {
		telemetry.Error("analysis.run_failed", map[string]any{
			"job_id": jobID,
			"error":  err.Error(),
		})
		s.Registry.Emit(jobID, broadcast.NewError(err.Error()))
	}
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, jobID string) (Job, error) {
	if jobID == "" {
		return Job{}, errors.New("jobID is required")
	}
	return s.Repo.GetByID(ctx, jobID)
}

// List returns a user's jobs, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Job, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Save marks a job as saved so cleanup never removes it.
func (s *Service) Save(ctx context.Context, jobID string) error {
	return s.Repo.SetSaved(ctx, jobID, true)
}

// Delete removes an unsaved job.
func (s *Service) Delete(ctx context.Context, jobID string) error {
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Saved {
		return ErrSavedJob
	}
	return s.Repo.Delete(ctx, jobID)
}

// Stop flips the job's broadcast channel inactive and notifies subscribers.
// The in-flight run observes the flag at its next checkpoint; the persisted
// status is deliberately left as-is.
func (s *Service) Stop(jobID string) {
	s.Registry.Stop(jobID, "Analysis stopped by user")
}

// ViewerTier resolves how much of a stored result the caller may see. The
// stored payload is always full fidelity; truncation happens at render time.
func (s *Service) ViewerTier(ctx context.Context, userID, kind string) access.Tier {
	if userID == "" {
		return access.TierPartial
	}
	account, err := s.Credits.Get(ctx, userID)
	if err != nil {
		telemetry.Error("analysis.viewer_tier", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return access.TierPartial
	}
	return access.TierFor(account.Balance, s.Credits.CostFor(kind), account.Unlimited)
}
