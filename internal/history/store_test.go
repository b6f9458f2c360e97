package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmado/postman2burp/internal/runner"
)

func sampleSummary() *runner.RunSummary {
	start := time.Now().Add(-2 * time.Second)
	return &runner.RunSummary{
		CollectionName: "sample",
		TotalRequests:  2,
		Executed:       2,
		Succeeded:      1,
		Failed:         1,
		StartTime:      start,
		EndTime:        start.Add(time.Second),
		Results: []runner.ExecutionResult{
			{
				ID:         "r1",
				Name:       "list users",
				FolderPath: []string{"users"},
				Request: runner.RequestSnapshot{
					Method:  "GET",
					URL:     "https://example.com/v1/users",
					Headers: map[string]string{"Accept": "application/json"},
				},
				Response: &runner.ResponseSnapshot{
					Status:  200,
					Headers: map[string]string{"Content-Type": "application/json"},
					Body:    `[{"id": 1}]`,
				},
				ElapsedMs: 120,
				Success:   true,
			},
			{
				ID:   "r2",
				Name: "broken",
				Request: runner.RequestSnapshot{
					Method: "POST",
					URL:    "https://example.com/v1/broken",
				},
				Error: "request failed: connection refused",
			},
		},
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save and read back a run", func(t *testing.T) {
		store, err := NewInMemory()
		require.NoError(t, err)
		defer store.Close()

		runID, err := store.SaveRun(ctx, sampleSummary())
		require.NoError(t, err)
		require.NotEmpty(t, runID)

		runs, err := store.Runs(ctx, 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, runID, runs[0].ID)
		assert.Equal(t, "sample", runs[0].CollectionName)
		assert.Equal(t, 2, runs[0].TotalRequests)
		assert.Equal(t, 1, runs[0].Succeeded)
		assert.Equal(t, 1, runs[0].Failed)

		executions, err := store.Executions(ctx, runID)
		require.NoError(t, err)
		require.Len(t, executions, 2)

		first := executions[0]
		assert.Equal(t, "r1", first.ID)
		assert.Equal(t, []string{"users"}, first.FolderPath)
		assert.Equal(t, 200, first.Status)
		assert.Equal(t, "application/json", first.RequestHeaders["Accept"])
		assert.True(t, first.Success)

		second := executions[1]
		assert.False(t, second.Success)
		assert.Contains(t, second.Error, "connection refused")
		assert.Equal(t, 0, second.Status)
	})

	t.Run("runs are newest first with limit", func(t *testing.T) {
		store, err := NewInMemory()
		require.NoError(t, err)
		defer store.Close()

		older := sampleSummary()
		older.StartTime = time.Now().Add(-time.Hour)
		older.CollectionName = "older"
		_, err = store.SaveRun(ctx, older)
		require.NoError(t, err)

		newer := sampleSummary()
		newer.CollectionName = "newer"
		_, err = store.SaveRun(ctx, newer)
		require.NoError(t, err)

		runs, err := store.Runs(ctx, 1)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "newer", runs[0].CollectionName)
	})

	t.Run("unknown run id yields ErrNotFound", func(t *testing.T) {
		store, err := NewInMemory()
		require.NoError(t, err)
		defer store.Close()

		_, err = store.Executions(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("closed store refuses operations", func(t *testing.T) {
		store, err := NewInMemory()
		require.NoError(t, err)
		require.NoError(t, store.Close())

		_, err = store.SaveRun(ctx, sampleSummary())
		assert.ErrorIs(t, err, ErrStoreClosed)
	})
}
