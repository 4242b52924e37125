package analysis

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return &PGRepo{DB: db}, mock
}

func jobRow(job Job, results string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "document_id", "kind", "input_text", "context",
		"provider", "status", "results", "saved", "created_at", "updated_at",
	})
	var payload any
	if results != "" {
		payload = []byte(results)
	}
	rows.AddRow(job.ID, job.UserID, job.DocumentID, job.Kind, job.Text, job.Context,
		job.Provider, job.Status, payload, job.Saved, job.CreatedAt, job.UpdatedAt)
	return rows
}

func TestPGGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	stored := Job{
		ID: "j1", UserID: "u1", Kind: "manuscript", Text: "text",
		Provider: "openai", Status: StatusCompleted, CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectQuery(`SELECT .+ FROM analysis_jobs WHERE id = \$1`).
		WithArgs("j1").
		WillReturnRows(jobRow(stored, `{"summary":"s","batches":["b1"]}`))

	job, err := repo.GetByID(context.Background(), "j1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.ID != "j1" || job.UserID != "u1" || job.Status != StatusCompleted {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.Results["summary"] != "s" {
		t.Fatalf("results not decoded: %#v", job.Results)
	}
	batches, ok := job.Results["batches"].([]any)
	if !ok || len(batches) != 1 || batches[0] != "b1" {
		t.Fatalf("batches not decoded: %#v", job.Results["batches"])
	}
}

func TestPGGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT .+ FROM analysis_jobs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestPGCreateAnonymousJobStoresNullUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO analysis_jobs`).
		WithArgs("j1", nil, nil, "manuscript", "text", "", "openai", StatusPending,
			nil, false, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), Job{
		ID: "j1", Kind: "manuscript", Text: "text", Provider: "openai",
		Status: StatusPending, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestPGSetResultsMarshalsJSONB(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`UPDATE analysis_jobs SET results = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs([]byte(`{"summary":"done"}`), sqlmock.AnyArg(), "j1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetResults(context.Background(), "j1", map[string]any{"summary": "done"})
	if err != nil {
		t.Fatalf("SetResults: %v", err)
	}
}

func TestPGSetStatusUnknownJob(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`UPDATE analysis_jobs SET status = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(StatusStreaming, sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SetStatus(context.Background(), "missing", StatusStreaming); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestPGListByUserClampsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT .+ FROM analysis_jobs\s+WHERE user_id = \$1`).
		WithArgs("u1", 20, 0).
		WillReturnRows(jobRow(Job{ID: "j1", UserID: "u1", Kind: "manuscript"}, ""))

	jobs, err := repo.ListByUser(context.Background(), "u1", -5, -3)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "j1" {
		t.Fatalf("jobs = %+v", jobs)
	}
	if jobs[0].Results != nil {
		t.Fatalf("null results column must decode to nil map, got %#v", jobs[0].Results)
	}
}

func TestPGDelete(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`DELETE FROM analysis_jobs WHERE id = \$1`).
		WithArgs("j1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "j1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
