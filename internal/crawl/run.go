package crawl

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/source"
	"jobwatch-engine/internal/store"
)

type SearchParams struct {
	Keyword      string
	Area         string
	MaxPages     int
	Concurrency  int
	RequestDelay time.Duration // pacing between requests to the source
}

// Runner drives one crawl: sequential listing pagination, bounded-concurrency
// detail fetching, and a single writer into the store.
type Runner struct {
	src   source.Source
	store *store.Store
	hub   *events.Hub
	retry RetryPolicy
}

func New(src source.Source, st *store.Store, hub *events.Hub) *Runner {
	return &Runner{src: src, store: st, hub: hub, retry: DefaultRetryPolicy()}
}

// WithRetry overrides the default policy; used by tests to skip backoff.
func (r *Runner) WithRetry(p RetryPolicy) *Runner {
	r.retry = p
	return r
}

// runState collects skip reasons and the first fatal error across the
// fetch workers and the writer.
type runState struct {
	mu      sync.Mutex
	summary []string
	fatal   error
}

func (st *runState) skip(msg string) {
	st.mu.Lock()
	st.summary = append(st.summary, msg)
	st.mu.Unlock()
}

func (st *runState) setFatal(err error) {
	st.mu.Lock()
	if st.fatal == nil {
		st.fatal = err
	}
	st.mu.Unlock()
}

func (st *runState) snapshot() ([]string, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.summary, st.fatal
}

// Run executes one crawl. A single record's permanent failure never aborts
// the run; only a blocked or unreachable source (or an unreachable store)
// does. Records are written through as they arrive, so partial progress
// survives a mid-run crash.
func (r *Runner) Run(ctx context.Context, p SearchParams) (domain.CrawlRun, error) {
	if p.MaxPages < 1 {
		return domain.CrawlRun{}, fmt.Errorf("max_pages must be >= 1, got %d", p.MaxPages)
	}
	if p.Concurrency < 1 {
		return domain.CrawlRun{}, fmt.Errorf("concurrency must be >= 1, got %d", p.Concurrency)
	}

	started := time.Now().UTC()
	run := domain.CrawlRun{StartedAt: started, Status: domain.RunRunning}

	id, err := r.store.CreateRun(ctx, started)
	if err != nil {
		return run, fmt.Errorf("create run log: %w", err)
	}
	run.ID = id
	r.hub.Emit(events.TypeRunStarted, map[string]any{"run_id": id, "source": r.src.Name()})
	log.Printf("[crawl] run %d started source=%s keyword=%q area=%q", id, r.src.Name(), p.Keyword, p.Area)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if p.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(p.RequestDelay), 1)
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &runState{}
	seen := mapset.NewSet[string]()
	records := make(chan domain.JobRecord, p.Concurrency)

	// Single writer: concurrent workers submit completed records here
	// instead of touching the store themselves.
	var stored, created int
	writerDone := make(chan struct{})
	// Writes survive worker cancellation; an in-flight fetch that finishes
	// after a stop request still lands in the store.
	wctx := context.WithoutCancel(ctx)
	go func() {
		defer close(writerDone)
		for rec := range records {
			res, werr := r.store.Upsert(wctx, &rec)
			if werr != nil {
				// one retry, then the record becomes a skip
				res, werr = r.store.Upsert(wctx, &rec)
			}
			if werr != nil {
				if pingErr := r.store.Ping(wctx); pingErr != nil {
					state.setFatal(fmt.Errorf("store unreachable: %w", pingErr))
					cancel()
					continue
				}
				state.skip(fmt.Sprintf("store write %s: %v", rec.Key(), werr))
				r.hub.Emit(events.TypeRecordSkipped, map[string]any{"key": rec.Key(), "reason": "store_write"})
				continue
			}
			stored++
			if res == store.Created {
				created++
			}
			r.hub.Emit(events.TypeRecordStored, map[string]any{"key": rec.Key(), "result": res.String()})
		}
	}()

	g, gctx := errgroup.WithContext(cctx)
	g.SetLimit(p.Concurrency)

	q := source.Query{Keyword: p.Keyword, Area: p.Area}

	// Listing pages are sequential: page N+1 only makes sense once we know
	// page N had results.
	for page := 1; page <= p.MaxPages; page++ {
		if gctx.Err() != nil {
			break
		}
		if err := limiter.Wait(gctx); err != nil {
			break
		}

		var stubs []source.Stub
		err := r.retry.Do(gctx, func() error {
			var ferr error
			stubs, ferr = r.src.FetchListingPage(gctx, q, page)
			return ferr
		})
		if err != nil {
			if gctx.Err() != nil {
				break
			}
			if source.IsFatal(err) {
				state.setFatal(err)
				cancel()
			} else {
				state.skip(fmt.Sprintf("listing page %d: %v", page, err))
			}
			break
		}
		if len(stubs) == 0 {
			break
		}

		run.PagesFetched++
		r.hub.Emit(events.TypePageFetched, map[string]any{"page": page, "stubs": len(stubs)})

		for _, stub := range stubs {
			// Pagination overlap: first observation wins, later
			// duplicates are dropped silently.
			if !seen.Add(stub.JobID) {
				continue
			}
			stub := stub
			g.Go(func() error {
				return r.fetchDetail(gctx, limiter, stub, records, state)
			})
		}
	}

	_ = g.Wait()
	close(records)
	<-writerDone

	run.EndedAt = time.Now().UTC()
	run.RecordsFound = seen.Cardinality()
	run.RecordsNew = created

	summary, fatal := state.snapshot()
	run.ErrorSummary = summary
	switch {
	case fatal != nil:
		run.Status = domain.RunFailed
		run.ErrorSummary = append(run.ErrorSummary, "fatal: "+fatal.Error())
	case len(summary) > 0:
		run.Status = domain.RunPartial
	default:
		run.Status = domain.RunCompleted
	}

	if err := r.store.FinishRun(wctx, run); err != nil {
		log.Printf("[crawl] run %d: finish log: %v", run.ID, err)
	}
	r.hub.Emit(events.TypeRunFinished, map[string]any{
		"run_id": run.ID, "status": run.Status,
		"pages": run.PagesFetched, "found": run.RecordsFound, "new": run.RecordsNew,
		"skipped": len(run.ErrorSummary),
	})
	log.Printf("[crawl] run %d %s: pages=%d found=%d stored=%d new=%d skipped=%d",
		run.ID, run.Status, run.PagesFetched, run.RecordsFound, stored, run.RecordsNew, len(summary))

	return run, fatal
}

func (r *Runner) fetchDetail(ctx context.Context, limiter *rate.Limiter, stub source.Stub, out chan<- domain.JobRecord, state *runState) error {
	// Cooperative cancellation boundary: never start a fetch after stop.
	if ctx.Err() != nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil
	}

	var rec domain.JobRecord
	err := r.retry.Do(ctx, func() error {
		var ferr error
		rec, ferr = r.src.FetchDetail(ctx, stub)
		return ferr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if source.IsFatal(err) {
			state.setFatal(err)
			return err // cancels the group
		}
		state.skip(fmt.Sprintf("detail %s: %v", stub.JobID, err))
		r.hub.Emit(events.TypeRecordSkipped, map[string]any{"key": stub.JobID, "reason": source.KindOf(err).String()})
		return nil
	}

	out <- rec
	return nil
}
