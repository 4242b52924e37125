package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"textlens-backend/internal/access"
	"textlens-backend/internal/broadcast"
	"textlens-backend/internal/credits"
	"textlens-backend/internal/prompt"
	"textlens-backend/internal/provider"
	"textlens-backend/internal/shared/metrics"
	"textlens-backend/internal/shared/telemetry"
)

const (
	defaultBatchDelay = 10 * time.Second
	defaultDelayTick  = 100 * time.Millisecond
)

// ProviderClient is the streaming surface the orchestrator consumes.
type ProviderClient interface {
	Stream(ctx context.Context, p provider.Provider, messages []provider.Message, onDelta func(string)) (provider.StreamResult, error)
}

// Orchestrator drives one analysis job end to end: resolve access tier,
// consume credits, stream the summary phase, stream question batches with
// inter-batch delays, persist results, and emit progress through the
// broadcast registry. Stop requests are observed cooperatively at every
// checkpoint between blocking steps.
type Orchestrator struct {
	Repo     Repo
	Credits  *credits.Service
	Provider ProviderClient
	Registry *broadcast.Registry

	// BatchDelay and DelayTick default to 10s and 100ms when zero.
	BatchDelay time.Duration
	DelayTick  time.Duration

	// ResolveKind defaults to KindByID; overridable for tests.
	ResolveKind func(string) (Kind, bool)
}

// Run executes the job. The returned error is the job-level failure already
// persisted to the job record; the caller logs it and broadcasts the error
// event. A user-initiated stop returns nil with no terminal persistence
// beyond what was already written.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.Repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("analysis lookup id=%s: %w", jobID, err)
	}

	o.Registry.Activate(job.ID)
	defer o.Registry.Release(job.ID)

	kind, ok := o.resolveKind(job.Kind)
	if !ok {
		return o.fail(job, fmt.Errorf("%w: %s", ErrUnknownKind, job.Kind))
	}

	tier, err := o.resolveTier(ctx, job)
	if err != nil {
		return o.fail(job, fmt.Errorf("credit check: %w", err))
	}

	if err := o.Repo.SetStatus(ctx, job.ID, StatusStreaming); err != nil {
		return o.fail(job, fmt.Errorf("set streaming: %w", err))
	}
	startedAt := time.Now()
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"job_id":            job.ID,
		"user_id":           job.UserID,
		"kind":              job.Kind,
		"provider":          job.Provider,
		"tier":              string(tier),
		"status":            StatusStreaming,
		"status_transition": "pending->streaming",
	})

	p := provider.Normalize(job.Provider)

	summary, err := o.runSummary(ctx, p, job, tier)
	if err != nil {
		return o.fail(job, err)
	}

	batches := Batches(kind.Questions)
	responses := make([]string, 0, len(batches))
	for i, questions := range batches {
		number := i + 1

		if !o.Registry.IsActive(job.ID) {
			return o.stopped(job, startedAt)
		}

		response, err := o.runBatch(ctx, p, job, kind, tier, number, questions)
		if err != nil {
			return o.fail(job, err)
		}
		responses = append(responses, response)

		if !o.Registry.IsActive(job.ID) {
			return o.stopped(job, startedAt)
		}
		if number < len(batches) {
			if halted := o.interBatchDelay(job.ID); halted {
				return o.stopped(job, startedAt)
			}
		}
	}

	if err := o.persistResults(ctx, job, kind, summary, responses); err != nil {
		return o.fail(job, err)
	}

	o.Registry.Emit(job.ID, broadcast.NewComplete())
	metrics.IncAnalysisCompleted()
	durationMs := float64(time.Since(startedAt).Microseconds()) / 1000.0
	metrics.ObserveAnalysisDurationMs(durationMs)
	telemetry.Info("analysis.status", map[string]any{
		"job_id":            job.ID,
		"user_id":           job.UserID,
		"kind":              job.Kind,
		"status":            StatusCompleted,
		"status_transition": "streaming->completed",
		"batches":           len(responses),
		"duration_ms":       durationMs,
	})
	return nil
}

// resolveTier deducts the kind's credit cost in one conditional step. Jobs
// without an owning user always stream at partial tier.
func (o *Orchestrator) resolveTier(ctx context.Context, job Job) (access.Tier, error) {
	if job.UserID == "" {
		return access.TierPartial, nil
	}
	full, err := o.Credits.TryConsume(ctx, job.UserID, job.Kind)
	if err != nil {
		return access.TierPartial, err
	}
	if full {
		return access.TierFull, nil
	}
	return access.TierPartial, nil
}

// runSummary streams the summary prompt, broadcasting the truncated
// accumulated snapshot on every increment.
func (o *Orchestrator) runSummary(ctx context.Context, p provider.Provider, job Job, tier access.Tier) (string, error) {
	var accumulated strings.Builder
	messages := []provider.Message{{Role: "user", Content: prompt.Summary(job.Text)}}
	result, err := o.Provider.Stream(ctx, p, messages, func(delta string) {
		accumulated.WriteString(delta)
		o.Registry.Emit(job.ID, broadcast.NewSummary(access.TruncateWords(accumulated.String(), tier)))
		metrics.IncStreamEvents(1)
	})
	if err != nil {
		return "", fmt.Errorf("summary phase: %w", err)
	}
	if result.Increments == 0 {
		return "", &EmptyResponseError{}
	}
	return result.Content, nil
}

// runBatch streams one question batch and emits its batch_complete marker.
// The returned response is untruncated; truncation applies only to what is
// broadcast.
func (o *Orchestrator) runBatch(ctx context.Context, p provider.Provider, job Job, kind Kind, tier access.Tier, number int, questions []string) (string, error) {
	content := prompt.Questions(job.Text, questions, job.Context, kind.Mode)
	var accumulated strings.Builder
	messages := []provider.Message{{Role: "user", Content: content}}
	result, err := o.Provider.Stream(ctx, p, messages, func(delta string) {
		accumulated.WriteString(delta)
		o.Registry.Emit(job.ID, broadcast.NewRawStream(number, access.TruncateWords(accumulated.String(), tier)))
		metrics.IncStreamEvents(1)
	})
	if err != nil {
		return "", fmt.Errorf("batch %d: %w", number, err)
	}
	if result.Increments == 0 {
		return "", &EmptyResponseError{Batch: number}
	}
	o.Registry.Emit(job.ID, broadcast.NewBatchComplete(number, access.TruncateWords(result.Content, tier)))
	metrics.IncStreamEvents(1)
	return result.Content, nil
}

// interBatchDelay sleeps the configured delay in ticks, emitting a progress
// event per tick. The active flag is checked each tick so a stop request
// halts the delay within one tick rather than waiting it out.
func (o *Orchestrator) interBatchDelay(jobID string) bool {
	delay := o.BatchDelay
	if delay <= 0 {
		delay = defaultBatchDelay
	}
	tick := o.DelayTick
	if tick <= 0 {
		tick = defaultDelayTick
	}
	ticks := int(delay / tick)
	if ticks < 1 {
		ticks = 1
	}
	for i := 1; i <= ticks; i++ {
		if !o.Registry.IsActive(jobID) {
			return true
		}
		time.Sleep(tick)
		o.Registry.Emit(jobID, broadcast.NewDelay(i*100/ticks))
	}
	return false
}

// persistResults writes the untruncated results, re-reads the job to verify
// the write stuck, and only then marks the job completed.
func (o *Orchestrator) persistResults(ctx context.Context, job Job, kind Kind, summary string, responses []string) error {
	if err := o.Repo.SetResults(ctx, job.ID, successResults(kind, summary, responses)); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	stored, err := o.Repo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("verify results: %w", err)
	}
	if stored.Results == nil {
		return ErrPersistenceVerification
	}
	if err := o.Repo.SetStatus(ctx, job.ID, StatusCompleted); err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	return nil
}

// fail writes the terminal error state on a background context so a cancelled
// request context cannot leave the job ambiguous, then surfaces the original
// error to the caller for logging and the error broadcast.
func (o *Orchestrator) fail(job Job, runErr error) error {
	ctx := context.Background()
	if err := o.Repo.SetResults(ctx, job.ID, errorResults(job.Kind, runErr)); err != nil {
		telemetry.Error("analysis.fail_persist", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
			"cause":  runErr.Error(),
		})
	}
	if err := o.Repo.SetStatus(ctx, job.ID, StatusError); err != nil {
		telemetry.Error("analysis.fail_persist", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
			"cause":  runErr.Error(),
		})
	}
	metrics.IncAnalysisFailed()
	telemetry.Info("analysis.status", map[string]any{
		"job_id":            job.ID,
		"user_id":           job.UserID,
		"kind":              job.Kind,
		"status":            StatusError,
		"status_transition": "streaming->error",
		"error":             runErr.Error(),
	})
	return runErr
}

// stopped ends the run without touching the job's persisted state. The
// stopped event was already emitted by Registry.Stop before the flag flip
// became visible here.
func (o *Orchestrator) stopped(job Job, startedAt time.Time) error {
	metrics.IncAnalysisStopped()
	telemetry.Info("analysis.stopped", map[string]any{
		"job_id":      job.ID,
		"user_id":     job.UserID,
		"kind":        job.Kind,
		"duration_ms": float64(time.Since(startedAt).Microseconds()) / 1000.0,
	})
	return nil
}

func (o *Orchestrator) resolveKind(id string) (Kind, bool) {
	if o.ResolveKind != nil {
		return o.ResolveKind(id)
	}
	return KindByID(id)
}
