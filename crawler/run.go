package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"corpuscrawler/internal/budget"
	"corpuscrawler/internal/cache"
	"corpuscrawler/internal/dedup"
	"corpuscrawler/internal/limiter"
	"corpuscrawler/internal/logging"
	"corpuscrawler/internal/metrics"
	"corpuscrawler/internal/registry"
	"corpuscrawler/internal/store"
)

var (
	errRegistryRequired  = errors.New("registry is required")
	errFetcherRequired   = errors.New("fetcher is required")
	errExtractorRequired = errors.New("extractor is required")
	errStoreRequired     = errors.New("store is required")
)

// runner is the state shared by the sources of one run.
type runner struct {
	opts   Options
	log    *slog.Logger
	clock  limiter.Timer
	seen   *cache.Set[string]
	dedup  *dedup.Deduplicator
	budget *budget.Controller

	mu      sync.Mutex
	summary Summary
}

// Run crawls every selected source of opts.Registry until the frontiers
// drain, a budget ceiling is reached or ctx is canceled.
//
// Per-URL failures become index records and never end the run. Run returns
// an error only for invalid options or when the index log cannot be written.
func Run(ctx context.Context, opts Options) (Summary, error) {
	if err := validateOptions(opts); err != nil {
		return Summary{}, err
	}

	r := newRunner(opts)
	r.log.Info("run", "run_id", r.summary.RunID, "exhaust", opts.Exhaust, "validate_only", opts.ValidateOnly)

	sources := r.selectSources()
	r.summary.Sources = len(sources)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(opts.Workers, 1))

	for _, src := range sources {
		if groupCtx.Err() != nil || !r.budget.CanProceed() {
			break
		}

		group.Go(func() error {
			return r.crawlSource(groupCtx, src)
		})
	}

	runErr := group.Wait()

	return r.finish(ctx, runErr), runErr
}

func validateOptions(opts Options) error {
	switch {
	case opts.Registry == nil:
		return errRegistryRequired
	case opts.Fetcher == nil:
		return errFetcherRequired
	case opts.Extractor == nil:
		return errExtractorRequired
	case opts.Store == nil:
		return errStoreRequired
	}

	return nil
}

func newRunner(opts Options) *runner {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}

	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	clock := opts.Clock
	if clock == nil {
		clock = limiter.NewClock()
	}

	dd := opts.Dedup
	if dd == nil {
		dd = dedup.New()
	}

	return &runner{
		opts:    opts,
		log:     log,
		clock:   clock,
		seen:    cache.NewSet[string](),
		dedup:   dd,
		budget:  budget.New(opts.Budget),
		summary: Summary{RunID: opts.RunID, State: StateIdle.String()},
	}
}

func (r *runner) selectSources() []registry.Source {
	var selected []registry.Source
	for _, src := range r.opts.Registry.Sources() {
		if ok, reason := r.opts.Filter.Allows(src); !ok {
			r.log.Debug("source skipped", "source", src.Name(), "reason", reason)

			continue
		}
		selected = append(selected, src)
	}

	return selected
}

func (r *runner) finish(ctx context.Context, runErr error) Summary {
	usage := r.budget.Usage()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.summary.Visited = usage.Visits
	r.summary.State = StateExhausted.String()
	if reason, done := r.budget.Exhausted(); done {
		r.summary.StopReason = string(reason)
	}
	if ctx.Err() != nil || runErr != nil {
		r.summary.State = StateInterrupted.String()
	}

	r.log.Info("summary",
		"saved", r.summary.Saved,
		"bytes", r.summary.Bytes,
		"visited", r.summary.Visited,
		"duplicates", r.summary.Duplicates,
		"errors", r.summary.Errors,
		"state", r.summary.State,
		"stop_reason", r.summary.StopReason,
	)

	return r.summary
}

// now is the record timestamp: RFC3339, UTC, whole seconds.
func (r *runner) now() string {
	return r.clock.Now().UTC().Truncate(time.Second).Format(time.RFC3339)
}

// append writes a non-ok record and counts it.
func (r *runner) append(rec store.Record) error {
	rec.RunID = r.opts.RunID
	if rec.FetchedAt == "" {
		rec.FetchedAt = r.now()
	}

	if err := r.opts.Store.Append(rec); err != nil {
		return fmt.Errorf("append %s record for %s: %w", rec.Status, rec.URL, err)
	}

	metrics.Records.WithLabelValues(string(rec.Status)).Inc()

	r.mu.Lock()
	switch rec.Status {
	case store.StatusDuplicate:
		r.summary.Duplicates++
	case store.StatusError:
		r.summary.Errors++
	}
	r.mu.Unlock()

	return nil
}

func (r *runner) countSaved(size int64) {
	metrics.Records.WithLabelValues(string(store.StatusOK)).Inc()
	metrics.SavedBytes.Add(float64(size))

	r.mu.Lock()
	r.summary.Saved++
	r.summary.Bytes += size
	r.mu.Unlock()
}
