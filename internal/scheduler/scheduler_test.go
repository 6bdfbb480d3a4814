package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
)

func newTestScheduler(t *testing.T, run RunFunc, notify func(int)) *Scheduler {
	t.Helper()
	w, err := ParseWindow("09:00", "18:00")
	require.NoError(t, err)
	s := New(time.Hour, w, run, events.NewHub(), notify)
	s.state = Waiting
	return s
}

func TestIntervalClamping(t *testing.T) {
	w, _ := ParseWindow("09:00", "18:00")
	assert.Equal(t, 30*time.Minute, New(time.Minute, w, nil, nil, nil).interval)
	assert.Equal(t, 24*time.Hour, New(48*time.Hour, w, nil, nil, nil).interval)
	assert.Equal(t, 2*time.Hour, New(2*time.Hour, w, nil, nil, nil).interval)
}

func TestComputeNextClampsIntoWindow(t *testing.T) {
	s := newTestScheduler(t, nil, nil)

	// 18:00 + 1h lands at 19:00, outside; deferred to 09:00 next day.
	next := s.computeNext(at(18, 0))
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), next)

	// 12:00 + 1h stays inside.
	assert.Equal(t, at(13, 0), s.computeNext(at(12, 0)))
}

func TestFireOutsideWindowDefersWithoutRunning(t *testing.T) {
	ran := false
	s := newTestScheduler(t, func(ctx context.Context) (domain.CrawlRun, error) {
		ran = true
		return domain.CrawlRun{}, nil
	}, nil)

	s.onFire(context.Background(), at(20, 0))

	assert.False(t, ran)
	assert.Equal(t, Waiting, s.State())
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), s.NextFire())
}

func TestFireWhileRunningIsSkipped(t *testing.T) {
	block := make(chan struct{})
	done := make(chan struct{})
	s := newTestScheduler(t, func(ctx context.Context) (domain.CrawlRun, error) {
		<-block
		return domain.CrawlRun{Status: domain.RunCompleted, RecordsNew: 3}, nil
	}, func(n int) { close(done) })

	s.onFire(context.Background(), at(10, 0))
	require.Equal(t, Running, s.State())

	// Second fire must not queue a second run.
	s.onFire(context.Background(), at(11, 0))
	assert.Equal(t, Running, s.State())
	assert.Equal(t, 1, s.Stats().SkippedFire)
	// Recomputed from the skip time, not the original schedule.
	assert.Equal(t, at(12, 0), s.NextFire())

	close(block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run never completed")
	}

	assert.Eventually(t, func() bool { return s.State() == Waiting }, time.Second, 10*time.Millisecond)
	st := s.Stats()
	assert.Equal(t, 1, st.TotalRuns)
	assert.Equal(t, 3, st.TotalNew)
}

func TestStartWaitsForInFlightRun(t *testing.T) {
	runExited := make(chan struct{})
	s := newTestScheduler(t, func(rctx context.Context) (domain.CrawlRun, error) {
		<-rctx.Done()
		// In-flight work after the stop request: the boundary check and
		// write flush a real crawl performs before returning.
		time.Sleep(50 * time.Millisecond)
		close(runExited)
		return domain.CrawlRun{Status: domain.RunCompleted}, nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	startReturned := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(startReturned)
	}()
	require.Eventually(t, func() bool { return !s.NextFire().IsZero() }, time.Second, 5*time.Millisecond)

	s.onFire(ctx, at(10, 0))
	require.Equal(t, Running, s.State())

	cancel()
	select {
	case <-startReturned:
	case <-time.After(2 * time.Second):
		t.Fatal("Start never returned after cancel")
	}
	select {
	case <-runExited:
	default:
		t.Fatal("Start returned while the crawl run was still in flight")
	}
	assert.Equal(t, Idle, s.State())
}

func TestRunErrorCountsAndKeepsScheduling(t *testing.T) {
	done := make(chan struct{})
	s := newTestScheduler(t, func(ctx context.Context) (domain.CrawlRun, error) {
		return domain.CrawlRun{Status: domain.RunFailed}, assert.AnError
	}, func(n int) { close(done) })

	s.onFire(context.Background(), at(10, 0))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run never completed")
	}

	assert.Eventually(t, func() bool { return s.State() == Waiting }, time.Second, 10*time.Millisecond)
	st := s.Stats()
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, 1, st.TotalRuns)
	assert.False(t, s.NextFire().IsZero(), "a failed run must not stall the schedule")
}
