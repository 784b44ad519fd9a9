package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"corpuscrawler/internal/fetcher"
	"corpuscrawler/internal/frontier"
	"corpuscrawler/internal/metrics"
	"corpuscrawler/internal/registry"
	"corpuscrawler/internal/store"
)

// ErrDisallowed is recorded for URLs refused by robots.txt.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// sourceCrawl is the serialized loop of one source.
type sourceCrawl struct {
	*runner
	src    registry.Source
	front  *frontier.Frontier
	titles map[string]string
	state  State
	log    *slog.Logger
}

func (r *runner) crawlSource(ctx context.Context, src registry.Source) error {
	maxDepth := r.opts.MaxDepth
	if src.Mode == registry.IndexMode {
		maxDepth = max(maxDepth, 1)
	}

	s := &sourceCrawl{
		runner: r,
		src:    src,
		front:  frontier.New(r.seen, maxDepth),
		titles: map[string]string{},
		state:  StateIdle,
		log:    r.log.With("source", src.Name()),
	}

	s.transition(StateSelectingSource)
	s.log.Info("source", "mode", src.Mode.String(), "start", src.StartURL())

	s.transition(StateDiscoveringLinks)
	if src.Mode == registry.SeedMode {
		s.front.Enqueue(src.SeedURL, 0)
	} else if err := s.discover(ctx); err != nil {
		return err
	}

	if r.opts.ValidateOnly {
		s.transition(StateExhausted)

		return nil
	}

	for {
		if ctx.Err() != nil {
			s.transition(StateInterrupted)

			return nil
		}

		if !r.budget.CanProceed() {
			s.transition(StateExhausted)

			return nil
		}

		entry, ok := s.front.Next()
		if !ok {
			s.transition(StateExhausted)

			return nil
		}

		// The fetch-extract-record sequence of an item runs to completion
		// once started, even when ctx is canceled meanwhile.
		if err := s.processItem(context.WithoutCancel(ctx), entry); err != nil {
			return err
		}
	}
}

func (s *sourceCrawl) transition(next State) {
	s.log.Debug("state", "from", s.state.String(), "to", next.String())
	s.state = next
}

// fetch counts a visit and fetches url. The bool is false when the visit ceiling
// or another budget ceiling refused the fetch.
func (s *sourceCrawl) fetch(ctx context.Context, url, kind string) (fetcher.Result, bool, error) {
	if s.opts.Robots != nil && !s.opts.Robots.Allowed(ctx, url) {
		return fetcher.Result{}, true, ErrDisallowed
	}

	if !s.budget.Visit() {
		return fetcher.Result{}, false, nil
	}
	metrics.Visits.WithLabelValues(kind).Inc()

	started := time.Now()
	result, err := s.opts.Fetcher.Fetch(ctx, url)
	metrics.FetchDuration.Observe(time.Since(started).Seconds())

	return result, true, err
}

func (s *sourceCrawl) errorRecord(url string, depth int, err error) store.Record {
	rec := store.Record{
		Category: s.src.Category,
		Source:   s.src.Key,
		URL:      url,
		Depth:    depth,
		Status:   store.StatusError,
		Error:    store.Ptr(err.Error()),
	}

	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		rec.HTTPStatus = fetchErr.StatusCode
	}

	return rec
}

// discover walks the pagination sequence of an index source and enqueues
// item links at depth 1.
func (s *sourceCrawl) discover(ctx context.Context) error {
	collected := 0
	fetched := 0

	for page, pageURL := range frontier.Pages(s.src.IndexURL, s.src.Paginate, s.opts.Exhaust) {
		if ctx.Err() != nil {
			break
		}

		// Cancellation is checked between pages, never during one.
		result, ok, err := s.fetch(context.WithoutCancel(ctx), pageURL, "index")
		if !ok {
			break
		}

		if err != nil {
			s.log.Warn("page", "url", pageURL, "error", err)
			if appendErr := s.append(s.errorRecord(pageURL, 0, err)); appendErr != nil {
				return appendErr
			}

			continue
		}
		fetched++

		links, err := s.opts.Extractor.Links(result.Body, finalURL(result, pageURL), s.src.LinkPattern, s.src.MaxIndex-collected)
		if err != nil {
			if appendErr := s.append(s.errorRecord(pageURL, 0, fmt.Errorf("extract links: %w", err))); appendErr != nil {
				return appendErr
			}

			continue
		}

		added := 0
		for _, link := range links {
			if s.front.Enqueue(link.URL, 1) {
				s.titles[link.URL] = link.Title
				added++
			}
		}
		collected += added

		s.log.Info("page", "url", pageURL, "page", page, "links", added, "total", collected)

		if fetched == 1 && len(links) == 0 {
			break
		}

		if added == 0 && s.src.Paginate.StopOnEmpty {
			break
		}

		if collected >= s.src.MaxIndex {
			break
		}
	}

	if collected == 0 {
		return nil
	}

	return s.append(store.Record{
		Category: s.src.Category,
		Source:   s.src.Key,
		URL:      s.src.IndexURL,
		Status:   store.StatusInfo,
		Error:    store.Ptr(fmt.Sprintf("html-index: %d items", collected)),
	})
}

func finalURL(result fetcher.Result, requested string) string {
	if result.FinalURL != "" {
		return result.FinalURL
	}

	return requested
}
