package analysis

import "time"

const (
	StatusPending   = "pending"
	StatusStreaming = "streaming"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Job represents one user-requested analysis run. Created pending by the
// intake service; mutated only by the orchestrator after that. Results stays
// nil until a terminal state and then carries either the success shape or the
// error shape.
type Job struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId,omitempty"`
	DocumentID string         `json:"documentId,omitempty"`
	Kind       string         `json:"kind"`
	Text       string         `json:"-"`
	Context    string         `json:"context,omitempty"`
	Provider   string         `json:"provider"`
	Status     string         `json:"status"`
	Results    map[string]any `json:"results,omitempty"`
	Saved      bool           `json:"saved"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// successResults assembles the durable payload written when every batch
// finished. All content is untruncated regardless of the run's access tier.
func successResults(kind Kind, summary string, batchResponses []string) map[string]any {
	return map[string]any{
		"summary":     summary,
		"batches":     batchResponses,
		"questions":   kind.Questions,
		"kind":        kind.ID,
		"completedAt": time.Now().UTC().Format(time.RFC3339),
	}
}

// errorResults assembles the durable payload written on any terminal failure.
// It reuses the results field so no job ends ambiguous.
func errorResults(kindID string, err error) map[string]any {
	return map[string]any{
		"error":    err.Error(),
		"failedAt": time.Now().UTC().Format(time.RFC3339),
		"kind":     kindID,
	}
}
