package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemoryRepoLifecycle(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	job := Job{ID: "j1", UserID: "u1", Kind: "manuscript", Text: "text", Status: StatusPending}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.SetStatus(ctx, "j1", StatusStreaming); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := repo.SetResults(ctx, "j1", map[string]any{"summary": "s"}); err != nil {
		t.Fatalf("SetResults: %v", err)
	}
	if err := repo.SetSaved(ctx, "j1", true); err != nil {
		t.Fatalf("SetSaved: %v", err)
	}

	got, err := repo.GetByID(ctx, "j1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusStreaming || !got.Saved || got.Results["summary"] != "s" {
		t.Fatalf("unexpected job: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("updates must refresh UpdatedAt")
	}

	if err := repo.Delete(ctx, "j1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, "j1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID after delete = %v", err)
	}
}

func TestMemoryRepoUnknownJob(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	if err := repo.SetStatus(ctx, "nope", StatusError); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetStatus = %v", err)
	}
	if err := repo.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete = %v", err)
	}
}

func TestMemoryRepoListByUser(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		job := Job{
			ID:        fmt.Sprintf("j%d", i),
			UserID:    "u1",
			Kind:      "manuscript",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Create(ctx, Job{ID: "other", UserID: "u2", CreatedAt: base}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	jobs, err := repo.ListByUser(ctx, "u1", 2, 1)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "j3" || jobs[1].ID != "j2" {
		t.Fatalf("newest-first page wrong: %+v", jobs)
	}

	empty, err := repo.ListByUser(ctx, "u1", 10, 99)
	if err != nil || empty != nil {
		t.Fatalf("offset past end: jobs=%v err=%v", empty, err)
	}
}

func TestMemoryRepoCancelledContext(t *testing.T) {
	repo := NewMemoryRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := repo.Create(ctx, Job{ID: "j1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Create = %v", err)
	}
	if _, err := repo.GetByID(ctx, "j1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("GetByID = %v", err)
	}
}
