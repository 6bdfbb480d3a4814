package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
)

type State int

const (
	Idle State = iota
	Waiting
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Running:
		return "running"
	}
	return "unknown"
}

const (
	minInterval = 30 * time.Minute
	maxInterval = 24 * time.Hour
)

// RunFunc executes one crawl. Cancellation of ctx is cooperative: the crawl
// stops at the next page or record boundary.
type RunFunc func(ctx context.Context) (domain.CrawlRun, error)

type Stats struct {
	State       string    `json:"state"`
	NextFire    time.Time `json:"next_fire"`
	LastRunAt   time.Time `json:"last_run_at"`
	TotalRuns   int       `json:"total_runs"`
	TotalNew    int       `json:"total_new"`
	Errors      int       `json:"errors"`
	SkippedFire int       `json:"skipped_fires"`
}

// Scheduler owns the Idle/Waiting/Running state machine. All state sits
// behind one mutex; at most one crawl is ever in flight.
type Scheduler struct {
	interval time.Duration
	window   Window
	run      RunFunc
	notify   func(recordsNew int) // completion consumer, may be nil
	hub      *events.Hub

	now func() time.Time // injectable for tests

	mu       sync.Mutex
	state    State
	nextFire time.Time
	stats    Stats

	runCancel context.CancelFunc
	runDone   chan struct{} // closed by onRunDone; nil when no run in flight
	wake      chan struct{} // prods the loop after nextFire moves
}

func New(interval time.Duration, window Window, run RunFunc, hub *events.Hub, notify func(int)) *Scheduler {
	if interval < minInterval {
		interval = minInterval
	}
	if interval > maxInterval {
		interval = maxInterval
	}
	return &Scheduler{
		interval: interval,
		window:   window,
		run:      run,
		notify:   notify,
		hub:      hub,
		now:      time.Now,
		state:    Idle,
		wake:     make(chan struct{}, 1),
	}
}

// Start moves Idle -> Waiting and begins firing. Blocks until ctx is
// canceled. An in-flight crawl gets its context canceled but Start does not
// return until that run has completed: cancellation inside the crawl is
// cooperative, and the caller may exit the process once Start returns.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	now := s.now()
	s.state = Waiting
	s.nextFire = s.computeNext(now)
	s.stats.State = s.state.String()
	s.stats.NextFire = s.nextFire
	log.Printf("[sched] waiting, next fire %s (window %s, interval %s)",
		s.nextFire.Format(time.RFC3339), s.window, s.interval)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		d := s.nextFire.Sub(s.now())
		s.mu.Unlock()
		if d < 0 {
			d = 0
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.mu.Lock()
			if s.runCancel != nil {
				s.runCancel()
			}
			inFlight := s.runDone
			s.mu.Unlock()
			if inFlight != nil {
				// The crawl stops at its next page/record boundary and
				// flushes queued writes; wait it out before returning.
				<-inFlight
			}
			s.mu.Lock()
			s.state = Idle
			s.stats.State = s.state.String()
			s.mu.Unlock()
			return
		case <-s.wake:
			timer.Stop()
			continue
		case <-timer.C:
			s.onFire(ctx, s.now())
		}
	}
}

// onFire handles one fire event at time now. Split from the timer loop so
// the transition rules are testable with fabricated clocks.
func (s *Scheduler) onFire(ctx context.Context, now time.Time) {
	s.mu.Lock()

	if s.state == Running {
		// Overlap forbidden; recompute from the skip time so a long run
		// doesn't cause a fire storm afterwards.
		s.stats.SkippedFire++
		s.nextFire = s.computeNext(now)
		s.stats.NextFire = s.nextFire
		log.Printf("[sched] fire skipped (run in progress), next fire %s", s.nextFire.Format(time.RFC3339))
		s.hub.Emit(events.TypeScheduleSkipped, map[string]any{"next_fire": s.nextFire})
		s.mu.Unlock()
		return
	}

	if !s.window.Contains(now) {
		s.nextFire = s.window.NextOpen(now)
		s.stats.NextFire = s.nextFire
		log.Printf("[sched] outside window %s, deferred to %s", s.window, s.nextFire.Format(time.RFC3339))
		s.mu.Unlock()
		return
	}

	s.state = Running
	s.stats.State = s.state.String()
	s.stats.LastRunAt = now
	// Provisional next fire; completion recomputes it. If the run outlasts
	// the interval the timer lands in the Running branch above.
	s.nextFire = s.computeNext(now)
	s.stats.NextFire = s.nextFire
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	s.runDone = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer cancel()
		run, err := s.run(runCtx)
		s.onRunDone(run, err, s.now())
	}()
}

// onRunDone handles crawl completion with any terminal status.
func (s *Scheduler) onRunDone(run domain.CrawlRun, err error, now time.Time) {
	s.mu.Lock()
	s.state = Waiting
	s.runCancel = nil
	done := s.runDone
	s.runDone = nil
	s.nextFire = s.computeNext(now)
	s.stats.State = s.state.String()
	s.stats.NextFire = s.nextFire
	s.stats.TotalRuns++
	if err != nil || run.Status == domain.RunFailed {
		s.stats.Errors++
	}
	s.stats.TotalNew += run.RecordsNew
	notify := s.notify
	s.mu.Unlock()

	if err != nil {
		log.Printf("[sched] run error: %v", err)
	}
	log.Printf("[sched] run %d done status=%s new=%d, next fire %s",
		run.ID, run.Status, run.RecordsNew, s.NextFire().Format(time.RFC3339))

	if notify != nil {
		notify(run.RecordsNew)
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
	if done != nil {
		close(done)
	}
}

// computeNext is from+interval clamped into the allowed window.
func (s *Scheduler) computeNext(from time.Time) time.Time {
	t := from.Add(s.interval)
	return s.window.NextOpen(t)
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) NextFire() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextFire
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
