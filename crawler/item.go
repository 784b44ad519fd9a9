package crawler

import (
	"context"
	"errors"
	"fmt"

	"corpuscrawler/internal/dedup"
	"corpuscrawler/internal/extract"
	"corpuscrawler/internal/frontier"
	"corpuscrawler/internal/ledger"
	"corpuscrawler/internal/store"
)

// processItem fetches one frontier entry and records exactly one outcome,
// or nothing when a budget ceiling refuses the document.
func (s *sourceCrawl) processItem(ctx context.Context, entry frontier.Entry) error {
	s.transition(StateFetchingItem)

	result, ok, err := s.fetch(ctx, entry.URL, "item")
	if !ok {
		return nil
	}
	s.front.MarkVisited(entry.URL)

	if err != nil {
		s.log.Warn("item", "url", entry.URL, "status", store.StatusError, "error", err)

		return s.recordError(entry, result.StatusCode, err)
	}

	pageURL := finalURL(result, entry.URL)

	doc, err := s.opts.Extractor.Extract(result.Body, pageURL)
	if err == nil && !s.budget.AcceptText(doc.Text) {
		err = extract.ErrNoText
	}

	text := doc.Text
	if err == nil && s.opts.WordOnly {
		text = extract.WordsOnly(text)
		if text == "" {
			err = extract.ErrNoText
		}
	}

	if err != nil {
		if !errors.Is(err, extract.ErrNoText) {
			err = fmt.Errorf("extract: %w", err)
		}
		s.log.Info("item", "url", entry.URL, "status", store.StatusError, "error", err)

		return s.recordError(entry, result.StatusCode, err)
	}

	s.follow(result.Body, pageURL, entry.Depth)

	s.transition(StateRecording)

	hash := dedup.ContentHash(text)
	if !s.dedup.Admit(hash) {
		s.log.Info("item", "url", entry.URL, "status", store.StatusDuplicate, "id", hash)

		return s.append(store.Record{
			ID:         store.Ptr(hash),
			Category:   s.src.Category,
			Source:     s.src.Key,
			URL:        entry.URL,
			Depth:      entry.Depth,
			HTTPStatus: result.StatusCode,
			Status:     store.StatusDuplicate,
		})
	}

	size := int64(len(text))
	if !s.budget.Admit(size) {
		s.dedup.Release(hash)
		reason, _ := s.budget.Exhausted()
		s.log.Info("budget reached", "url", entry.URL, "bytes", size, "reason", reason)

		return nil
	}

	title := s.titles[entry.URL]
	if title == "" {
		title = doc.Title
	}

	rec, err := s.opts.Store.Save(store.Document{
		Category: s.src.Category,
		Source:   s.src.Key,
		URL:      entry.URL,
		Raw:      result.Body,
		Text:     text,
	}, store.Record{
		ID:            store.Ptr(hash),
		RunID:         s.opts.RunID,
		FetchedAt:     s.now(),
		Title:         title,
		PublishedDate: doc.PublishedDate,
		Language:      doc.Language,
		Depth:         entry.Depth,
		HTTPStatus:    result.StatusCode,
	})
	if err != nil {
		s.dedup.Release(hash)

		return fmt.Errorf("store %s: %w", entry.URL, err)
	}

	s.dedup.Commit(hash)
	s.countSaved(rec.Bytes)
	s.log.Info("item", "url", entry.URL, "status", store.StatusOK, "bytes", rec.Bytes, "path", rec.PathText)

	if s.opts.Ledger != nil {
		err := s.opts.Ledger.Put(ctx, ledger.Entry{
			Hash:     hash,
			URL:      entry.URL,
			Category: s.src.Category,
			Source:   s.src.Key,
			PathText: rec.PathText,
			RunID:    s.opts.RunID,
			StoredAt: s.clock.Now(),
		})
		if err != nil {
			s.log.Warn("ledger", "url", entry.URL, "error", err)
		}
	}

	return nil
}

func (s *sourceCrawl) recordError(entry frontier.Entry, statusCode int, err error) error {
	rec := s.errorRecord(entry.URL, entry.Depth, err)
	if rec.HTTPStatus == 0 {
		rec.HTTPStatus = statusCode
	}

	return s.append(rec)
}

// follow enqueues the matching links of an item page one level deeper.
func (s *sourceCrawl) follow(body []byte, pageURL string, depth int) {
	if depth >= s.front.MaxDepth() {
		return
	}

	links, err := s.opts.Extractor.Links(body, pageURL, s.src.LinkPattern, s.src.MaxIndex)
	if err != nil {
		s.log.Debug("links", "url", pageURL, "error", err)

		return
	}

	for _, link := range links {
		if s.front.Enqueue(link.URL, depth+1) && link.Title != "" {
			s.titles[link.URL] = link.Title
		}
	}
}
