package service

import (
	"context"
	"testing"
	"time"

	"github.com/h3nryswan/video-transcoder/internal/ledger"
	"github.com/h3nryswan/video-transcoder/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueIsNonBlocking(t *testing.T) {
	// workers never started, so nothing drains the channel
	q := NewJobQueue(nil, 1, 1)

	require.NoError(t, q.Enqueue(context.Background(), Dispatch{JobID: "a"}))
	assert.True(t, q.InFlight("a"))

	// already waiting
	require.NoError(t, q.Enqueue(context.Background(), Dispatch{JobID: "a"}))

	require.ErrorIs(t, q.Enqueue(context.Background(), Dispatch{JobID: "b"}), ErrQueueFull)
	assert.False(t, q.InFlight("b"))
}

func TestWorkerCountFloor(t *testing.T) {
	q := NewJobQueue(nil, 0, 1)
	assert.Equal(t, 1, q.workers)
}

func TestStopLeavesWaitingJobsQueued(t *testing.T) {
	// workers race ctx.Done against the backlog, so repeat a few times
	for range 5 {
		env := newTestEnv(t, fakeEncoder(t, slowScript))
		in := env.addOriginal(t, "u1", "clip.mov")
		jobs := ledger.New(env.store)

		// two workers, so two of these wait in the channel
		ids := make([]string, 0, 4)
		for range 4 {
			sub, err := env.orch.RequestTranscode(context.Background(), in.ID, "u1", nil)
			require.NoError(t, err)
			ids = append(ids, sub.JobID)
		}

		require.Eventually(t, func() bool {
			running, err := jobs.ListByStatus(context.Background(), model.StatusRunning)
			return err == nil && len(running) == 2
		}, 10*time.Second, 20*time.Millisecond)

		env.queue.Stop()

		statuses := map[model.JobStatus]int{}
		for _, id := range ids {
			j, ok, err := jobs.Get(context.Background(), id)
			require.NoError(t, err)
			require.True(t, ok)
			statuses[j.Status]++

			if j.Status == model.StatusError {
				require.NotNil(t, j.Error)
				assert.Equal(t, "encode interrupted: service shutting down", *j.Error)
			}
		}

		assert.Equal(t, map[model.JobStatus]int{model.StatusQueued: 2, model.StatusError: 2}, statuses)
	}
}
