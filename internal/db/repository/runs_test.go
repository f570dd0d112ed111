package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	internaldb "sheetsync/internal/db"
	"sheetsync/internal/domain"
)

func setupRunRepo(t *testing.T) *RunRepo {
	t.Helper()
	writeDB, readDB := internaldb.OpenTestSQLite(t)
	return NewRunRepo(writeDB, readDB)
}

func startedRun(id, pipeline string) *domain.Run {
	return &domain.Run{
		ID:        id,
		Pipeline:  pipeline,
		Market:    "US",
		Worksheet: "Raw_SB_H2_2025_US",
		Trigger:   domain.TriggerCLI,
		Status:    domain.RunStatusFailed,
		StartedAt: time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestRunRepoInsertFinishGet(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	run := startedRun(domain.NewID(), "sales")
	require.NoError(t, repo.InsertRun(ctx, run))

	finished := time.Date(2025, 11, 2, 10, 0, 42, 0, time.UTC)
	run.Status = domain.RunStatusSynced
	run.FilesTotal = 3
	run.FilesProcessed = 2
	run.FilesRejected = 1
	run.RowsMerged = 120
	run.RowsWritten = 120
	run.FinishedAt = &finished
	run.FileErrors = []domain.FileError{{File: "bad.xlsx", Reason: "no date found in filename"}}
	require.NoError(t, repo.FinishRun(ctx, run))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "sales", got.Pipeline)
	assert.Equal(t, "US", got.Market)
	assert.Equal(t, domain.RunStatusSynced, got.Status)
	assert.Equal(t, 3, got.FilesTotal)
	assert.Equal(t, 120, got.RowsWritten)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, finished, got.FinishedAt.UTC())
	require.Len(t, got.FileErrors, 1)
	assert.Equal(t, "bad.xlsx", got.FileErrors[0].File)
}

func TestRunRepoGetMissing(t *testing.T) {
	repo := setupRunRepo(t)
	_, err := repo.GetRun(context.Background(), "nope")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestRunRepoListFilters(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	for i, p := range []string{"sales", "sales", "campaigns"} {
		run := startedRun(domain.NewID(), p)
		run.StartedAt = run.StartedAt.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.InsertRun(ctx, run))
		if p == "sales" {
			run.Status = domain.RunStatusSynced
			require.NoError(t, repo.FinishRun(ctx, run))
		}
	}

	all, err := repo.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "campaigns", all[0].Pipeline, "newest first")

	sales, err := repo.ListRuns(ctx, RunFilter{Pipeline: "sales"})
	require.NoError(t, err)
	assert.Len(t, sales, 2)

	synced, err := repo.ListRuns(ctx, RunFilter{Status: domain.RunStatusSynced})
	require.NoError(t, err)
	assert.Len(t, synced, 2)

	one, err := repo.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestRunRepoDuplicateInsert(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	run := startedRun("fixed-id", "sales")
	require.NoError(t, repo.InsertRun(ctx, run))
	err := repo.InsertRun(ctx, run)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestRunRepoFinishTwiceKeepsOneOutcome(t *testing.T) {
	repo := setupRunRepo(t)
	ctx := context.Background()

	run := startedRun(domain.NewID(), "sales")
	require.NoError(t, repo.InsertRun(ctx, run))

	finished := time.Date(2025, 11, 2, 10, 1, 0, 0, time.UTC)
	run.Status = domain.RunStatusFailed
	run.FileErrors = []domain.FileError{{File: "bad.xlsx", Reason: "no date found in filename"}}
	run.FinishedAt = &finished
	require.NoError(t, repo.FinishRun(ctx, run))

	// A retried sync finishes the same run again with a new outcome.
	run.Status = domain.RunStatusPartial
	run.RowsWritten = 40
	require.NoError(t, repo.FinishRun(ctx, run))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPartial, got.Status)
	assert.Equal(t, 40, got.RowsWritten)
	assert.Len(t, got.FileErrors, 1, "file errors are replaced, not appended")
}
