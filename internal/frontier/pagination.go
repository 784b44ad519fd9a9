package frontier

import (
	"iter"

	"corpuscrawler/internal/registry"
	"corpuscrawler/internal/urlutil"
)

const (
	// ExhaustFactor multiplies max_pages to get the exhaust-mode ceiling.
	ExhaustFactor = 50

	// MinExhaustCeiling is the smallest exhaust-mode ceiling.
	MinExhaustCeiling = 50
)

// PageCeiling returns how many pages the sequence may yield at most.
func PageCeiling(rule registry.Pagination, exhaust bool) int {
	if !rule.Enabled {
		return 1
	}

	if !exhaust {
		return rule.MaxPages
	}

	return max(rule.MaxPages*ExhaustFactor, MinExhaustCeiling)
}

// Pages returns the lazy sequence of (page number, URL) for base.
//
// Without an enabled rule the base URL is yielded once as page 0. Otherwise
// param=N is appended for N = start, start+1, ... up to PageCeiling pages.
// The sequence never decides to stop early; the caller stops pulling.
func Pages(base string, rule registry.Pagination, exhaust bool) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		if !rule.Enabled {
			yield(0, base)

			return
		}

		ceiling := PageCeiling(rule, exhaust)
		for i := range ceiling {
			page := rule.Start + i
			if !yield(page, urlutil.WithPage(base, rule.Param, page)) {
				return
			}
		}
	}
}
