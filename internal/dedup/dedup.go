// Package dedup decides whether extracted text is new within a run.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// HashPrefix tags the digest algorithm in content hashes.
const HashPrefix = "sha256:"

// ContentHash returns the logical identity of normalized text.
// Identical text from different URLs shares a hash.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))

	return HashPrefix + hex.EncodeToString(sum[:])
}

// Deduplicator holds the content hashes admitted during one run.
// An admitted hash stays pending until its owner commits it once the document
// is persisted, or releases it. Admit on a pending hash waits for that
// outcome, so a duplicate is only ever reported against stored content.
// It is safe for concurrent use by parallel sources.
type Deduplicator struct {
	mu      sync.Mutex
	settled *sync.Cond
	stored  map[string]struct{}
	pending map[string]struct{}
}

// New creates an empty Deduplicator.
func New() *Deduplicator {
	d := &Deduplicator{
		stored:  map[string]struct{}{},
		pending: map[string]struct{}{},
	}
	d.settled = sync.NewCond(&d.mu)

	return d
}

// Seed marks hashes stored by earlier runs as already admitted.
func (d *Deduplicator) Seed(hashes []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, hash := range hashes {
		d.stored[hash] = struct{}{}
	}
}

// Admit returns true when hash is neither stored nor pending; the caller then
// owns it and must Commit or Release it. It returns false for a stored hash.
func (d *Deduplicator) Admit(hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		if _, ok := d.pending[hash]; !ok {
			break
		}
		d.settled.Wait()
	}

	if _, ok := d.stored[hash]; ok {
		return false
	}
	d.pending[hash] = struct{}{}

	return true
}

// Commit marks an admitted hash as stored.
func (d *Deduplicator) Commit(hash string) {
	d.mu.Lock()
	delete(d.pending, hash)
	d.stored[hash] = struct{}{}
	d.mu.Unlock()

	d.settled.Broadcast()
}

// Release withdraws an admission whose document was never persisted, so the
// hash can be admitted again by this or a later run.
func (d *Deduplicator) Release(hash string) {
	d.mu.Lock()
	delete(d.pending, hash)
	delete(d.stored, hash)
	d.mu.Unlock()

	d.settled.Broadcast()
}

// Len returns the number of stored and pending hashes.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.stored) + len(d.pending)
}
