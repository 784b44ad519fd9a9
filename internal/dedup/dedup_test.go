package dedup

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestContentHash(t *testing.T) {
	t.Parallel()

	a := ContentHash("hello world")
	if !strings.HasPrefix(a, HashPrefix) {
		t.Fatalf("hash %q lacks prefix", a)
	}
	if len(a) != len(HashPrefix)+64 {
		t.Fatalf("hash length = %d", len(a))
	}
	if a != ContentHash("hello world") {
		t.Fatalf("hash is not deterministic")
	}
	if a == ContentHash("hello world!") {
		t.Fatalf("different text must hash differently")
	}
}

func TestAdmitFirstOnly(t *testing.T) {
	t.Parallel()

	d := New()
	texts := []string{"alpha", "beta", "alpha", "alpha", "beta", "gamma"}

	var admitted []string
	for _, text := range texts {
		hash := ContentHash(text)
		if d.Admit(hash) {
			d.Commit(hash)
			admitted = append(admitted, text)
		}
	}

	if strings.Join(admitted, ",") != "alpha,beta,gamma" {
		t.Fatalf("admitted = %v", admitted)
	}
	if d.Len() != 3 {
		t.Fatalf("len = %d; want 3", d.Len())
	}
}

func TestSeedAndRelease(t *testing.T) {
	t.Parallel()

	d := New()
	hash := ContentHash("stored last run")
	d.Seed([]string{hash})

	if d.Admit(hash) {
		t.Fatalf("seeded hash must not be admitted")
	}

	d.Release(hash)
	if !d.Admit(hash) {
		t.Fatalf("released hash must be admittable again")
	}
}

func TestAdmitConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	d := New()
	hash := ContentHash("shared")
	var wins atomic.Int32
	var wg sync.WaitGroup

	for range 32 {
		wg.Go(func() {
			if d.Admit(hash) {
				wins.Add(1)
				d.Commit(hash)
			}
		})
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("wins = %d; want 1", wins.Load())
	}
}

func TestAdmitWaitsForPendingOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		settle func(d *Deduplicator, hash string)
		want   bool
	}{
		{name: "committed", settle: (*Deduplicator).Commit, want: false},
		{name: "released", settle: (*Deduplicator).Release, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := New()
			hash := ContentHash("pending " + tt.name)
			if !d.Admit(hash) {
				t.Fatalf("first admit refused")
			}

			got := make(chan bool, 1)
			go func() { got <- d.Admit(hash) }()

			select {
			case <-got:
				t.Fatalf("admit returned while the hash was pending")
			case <-time.After(20 * time.Millisecond):
			}

			tt.settle(d, hash)

			select {
			case admitted := <-got:
				if admitted != tt.want {
					t.Fatalf("admit = %v; want %v", admitted, tt.want)
				}
			case <-time.After(time.Second):
				t.Fatalf("admit still waiting after settle")
			}
		})
	}
}
