package groupqueue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/engram/pkg/groupqueue"
)

func TestRegistry_Get(t *testing.T) {
	t.Parallel()

	t.Run("creates lazily and reuses", func(t *testing.T) {
		t.Parallel()

		reg := groupqueue.NewRegistry[int](groupqueue.WithLogger(testLogger()))
		assert.Equal(t, 0, reg.Len())

		a1, err := reg.Get("alpha")
		require.NoError(t, err)
		a2, err := reg.Get("alpha")
		require.NoError(t, err)
		b, err := reg.Get("beta")
		require.NoError(t, err)

		assert.Same(t, a1, a2, "same group must yield the same queue")
		assert.NotSame(t, a1, b)
		assert.Equal(t, 2, reg.Len())
		assert.Equal(t, []string{"alpha", "beta"}, reg.Groups())
	})

	t.Run("concurrent lookups share one instance", func(t *testing.T) {
		t.Parallel()

		reg := groupqueue.NewRegistry[int](groupqueue.WithLogger(testLogger()))

		const n = 100
		queues := make([]*groupqueue.Queue[int], n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				q, err := reg.Get("shared")
				assert.NoError(t, err)
				queues[i] = q
			}()
		}
		wg.Wait()

		require.Equal(t, 1, reg.Len())
		for i := 1; i < n; i++ {
			assert.Same(t, queues[0], queues[i])
		}
	})
}

func TestRegistry_Shutdown(t *testing.T) {
	t.Parallel()

	t.Run("stops all queues and rejects further use", func(t *testing.T) {
		t.Parallel()

		reg := groupqueue.NewRegistry[int](groupqueue.WithLogger(testLogger()))

		groups := []string{"a", "b", "c"}
		queues := make([]*groupqueue.Queue[int], 0, len(groups))
		for _, g := range groups {
			q, err := reg.Get(g)
			require.NoError(t, err)
			q.Start()
			fut, err := q.EnqueueWait("warm", func(ctx context.Context) (int, error) {
				return 1, nil
			})
			require.NoError(t, err)
			_, err = fut.AwaitWithTimeout(2 * time.Second)
			require.NoError(t, err)
			queues = append(queues, q)
		}

		require.NoError(t, reg.Shutdown(context.Background()))

		for _, q := range queues {
			assert.False(t, q.Running())
			_, err := q.Enqueue("late", func(ctx context.Context) (int, error) { return 0, nil })
			assert.ErrorIs(t, err, groupqueue.ErrQueueClosed)
			q.Start()
			assert.False(t, q.Running(), "a closed queue must not restart")
		}

		_, err := reg.Get("a")
		assert.ErrorIs(t, err, groupqueue.ErrRegistryClosed)
		assert.Equal(t, 0, reg.Len())

		// Idempotent.
		assert.NoError(t, reg.Shutdown(context.Background()))
	})

	t.Run("waits for in-flight work", func(t *testing.T) {
		t.Parallel()

		reg := groupqueue.NewRegistry[int](groupqueue.WithLogger(testLogger()))
		q, err := reg.Get("busy")
		require.NoError(t, err)
		q.Start()

		started := make(chan struct{})
		var finished sync.WaitGroup
		finished.Add(1)
		_, err = q.EnqueueWait("slow", func(ctx context.Context) (int, error) {
			defer finished.Done()
			close(started)
			time.Sleep(50 * time.Millisecond)
			return 1, nil
		})
		require.NoError(t, err)
		<-started

		require.NoError(t, reg.Shutdown(context.Background()))
		finished.Wait()
		assert.False(t, q.Running())
	})

	t.Run("bounded by context", func(t *testing.T) {
		t.Parallel()

		reg := groupqueue.NewRegistry[int](groupqueue.WithLogger(testLogger()))
		q, err := reg.Get("stuck")
		require.NoError(t, err)
		q.Start()

		started := make(chan struct{})
		release := make(chan struct{})
		_, err = q.EnqueueWait("blocker", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		require.NoError(t, err)
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		assert.Error(t, reg.Shutdown(ctx), "shutdown must report queues that did not stop in time")

		close(release)
		waitUntil(t, func() bool { return !q.Running() }, "worker did not exit after release")
	})
}
