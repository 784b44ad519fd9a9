package crawler

import (
	"context"
	"log/slog"

	"corpuscrawler/internal/budget"
	"corpuscrawler/internal/dedup"
	"corpuscrawler/internal/extract"
	"corpuscrawler/internal/fetcher"
	"corpuscrawler/internal/ledger"
	"corpuscrawler/internal/limiter"
	"corpuscrawler/internal/registry"
	"corpuscrawler/internal/store"
)

// Fetcher retrieves one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetcher.Result, error)
}

// Store persists documents and index records.
type Store interface {
	Save(doc store.Document, rec store.Record) (store.Record, error)
	Append(rec store.Record) error
}

// RobotsPolicy decides whether a URL may be fetched at all.
type RobotsPolicy interface {
	Allowed(ctx context.Context, url string) bool
}

// Ledger remembers stored hashes across runs.
type Ledger interface {
	Put(ctx context.Context, e ledger.Entry) error
}

// Options configures a run.
// MaxDepth bounds link following from the start URL of a source; index
// sources always reach depth 1. Exhaust lifts the max_pages ceiling of
// pagination up to the safety ceiling. ValidateOnly stops after discovery.
// Dedup may carry hashes from earlier runs; a nil Dedup starts empty.
// URLs refused by Robots are recorded as errors without counting a visit.
type Options struct {
	Registry     *registry.Registry
	Filter       registry.Filter
	Fetcher      Fetcher
	Extractor    extract.Extractor
	Store        Store
	Ledger       Ledger
	Robots       RobotsPolicy
	Dedup        *dedup.Deduplicator
	Budget       budget.Limits
	MaxDepth     int
	Exhaust      bool
	ValidateOnly bool
	WordOnly     bool
	Workers      int
	RunID        string
	Logger       *slog.Logger
	Clock        limiter.Timer
}

// Summary is the outcome of a run.
type Summary struct {
	RunID      string `json:"run_id"`
	State      string `json:"state"`
	StopReason string `json:"stop_reason,omitempty"`
	Sources    int    `json:"sources"`
	Saved      int    `json:"saved"`
	Bytes      int64  `json:"bytes"`
	Visited    int    `json:"visited"`
	Duplicates int    `json:"duplicates"`
	Errors     int    `json:"errors"`
}

// State is a step of the crawl state machine.
//
//	Idle -> SelectingSource -> DiscoveringLinks -> FetchingItem -> Recording
//	     -> (FetchingItem | SelectingSource) -> Exhausted | Interrupted
type State int

const (
	StateIdle State = iota
	StateSelectingSource
	StateDiscoveringLinks
	StateFetchingItem
	StateRecording
	StateExhausted
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelectingSource:
		return "selecting-source"
	case StateDiscoveringLinks:
		return "discovering-links"
	case StateFetchingItem:
		return "fetching-item"
	case StateRecording:
		return "recording"
	case StateExhausted:
		return "exhausted"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}
