// Package frontier owns the breadth-first traversal queue of a source and
// the pagination sequences that feed it.
package frontier

import (
	"corpuscrawler/internal/cache"
)

// Entry is a URL waiting to be fetched and its distance from the source start.
type Entry struct {
	URL   string
	Depth int
}

// Frontier is a FIFO of entries guarded by a run-wide seen set.
//
// The queue belongs to a single source and is not safe for concurrent use.
// The seen set may be shared between the frontiers of one run; it only grows.
type Frontier struct {
	queue    []Entry
	head     int
	seen     *cache.Set[string]
	visited  *cache.Set[string]
	maxDepth int
}

// New creates a Frontier. A nil seen set gets a private one.
func New(seen *cache.Set[string], maxDepth int) *Frontier {
	if seen == nil {
		seen = cache.NewSet[string]()
	}

	return &Frontier{
		seen:     seen,
		visited:  cache.NewSet[string](),
		maxDepth: maxDepth,
	}
}

// MaxDepth returns the deepest depth Enqueue accepts.
func (f *Frontier) MaxDepth() int {
	return f.maxDepth
}

// Enqueue adds url at depth unless it is too deep or already seen.
// The URL is marked seen in the same step, before it is fetched.
func (f *Frontier) Enqueue(url string, depth int) bool {
	if url == "" || depth < 0 || depth > f.maxDepth {
		return false
	}

	if !f.seen.Add(url) {
		return false
	}

	f.queue = append(f.queue, Entry{URL: url, Depth: depth})

	return true
}

// Next pops the oldest entry. ok is false when the frontier is empty.
// Entries leave in insertion order, and children are always enqueued after
// their parent is popped, so depths come out non-decreasing.
func (f *Frontier) Next() (Entry, bool) {
	if f.head >= len(f.queue) {
		return Entry{}, false
	}

	entry := f.queue[f.head]
	f.queue[f.head] = Entry{}
	f.head++

	if f.head == len(f.queue) {
		f.queue = f.queue[:0]
		f.head = 0
	}

	return entry, true
}

// Len returns the number of entries still queued.
func (f *Frontier) Len() int {
	return len(f.queue) - f.head
}

// MarkVisited records url as fetched. It is idempotent, and also marks the
// URL seen so it can never be enqueued afterwards.
func (f *Frontier) MarkVisited(url string) {
	f.seen.Add(url)
	f.visited.Add(url)
}

// Visited returns how many distinct URLs were marked visited.
func (f *Frontier) Visited() int {
	return f.visited.Len()
}

// Seen reports whether url was enqueued or visited during the run.
func (f *Frontier) Seen(url string) bool {
	return f.seen.Has(url)
}
