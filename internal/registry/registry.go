// Package registry loads the static description of crawl targets:
// categories, their sources and each source's pagination rule.
// A Registry is read-only once loaded.
package registry

import (
	"fmt"
	"regexp"
	"slices"
)

// Defaults applied to fields missing from the file.
const (
	DefaultMaxIndex    = 50
	DefaultPageParam   = "page"
	DefaultPageStart   = 1
	DefaultMaxPages    = 1
	PaginateModeQuery  = "query"
	DefaultStopOnEmpty = true
)

// Mode selects how a source seeds the frontier.
type Mode int

const (
	// IndexMode discovers item links on paginated index pages.
	IndexMode Mode = iota
	// SeedMode starts the frontier with a single URL.
	SeedMode
)

func (m Mode) String() string {
	if m == SeedMode {
		return "seed"
	}

	return "index"
}

// Pagination is a query-parameter paging rule.
// Enabled is false when the source has no paginate block or an unknown mode;
// the index URL is then fetched once as-is.
type Pagination struct {
	Enabled     bool
	Param       string
	Start       int
	MaxPages    int
	StopOnEmpty bool
}

// Source describes one crawl target.
type Source struct {
	Category    string
	Key         string
	Enabled     bool
	Mode        Mode
	IndexURL    string
	SeedURL     string
	LinkPattern *regexp.Regexp
	MaxIndex    int
	Paginate    Pagination
}

// Name returns "category/key".
func (s Source) Name() string {
	return s.Category + "/" + s.Key
}

// StartURL returns the index URL or the seed URL, depending on the mode.
func (s Source) StartURL() string {
	if s.Mode == SeedMode {
		return s.SeedURL
	}

	return s.IndexURL
}

// Category groups sources under a name. Order follows the file.
type Category struct {
	Name    string
	Sources []Source
}

// Registry is the loaded set of categories.
type Registry struct {
	Categories []Category
}

// Sources returns every source in file order.
func (r *Registry) Sources() []Source {
	if r == nil {
		return nil
	}

	var out []Source
	for _, category := range r.Categories {
		out = append(out, category.Sources...)
	}

	return out
}

// Lookup finds a source by category and key.
func (r *Registry) Lookup(category, key string) (Source, bool) {
	for _, src := range r.Sources() {
		if src.Category == category && src.Key == key {
			return src, true
		}
	}

	return Source{}, false
}

// Filter restricts a run to some categories and source keys.
// Empty lists allow everything.
type Filter struct {
	Categories []string
	Sources    []string
}

// Allows reports whether src takes part in the run, with a reason when it does not.
func (f Filter) Allows(src Source) (bool, string) {
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, src.Category) {
		return false, "category filtered"
	}

	if len(f.Sources) > 0 && !slices.Contains(f.Sources, src.Key) {
		return false, "source filtered"
	}

	if !src.Enabled {
		return false, "disabled"
	}

	return true, ""
}

// Select returns the sources allowed by f, in file order.
func (r *Registry) Select(f Filter) []Source {
	var out []Source
	for _, src := range r.Sources() {
		if ok, _ := f.Allows(src); ok {
			out = append(out, src)
		}
	}

	return out
}

func (s Source) validate() error {
	if s.Key == "" {
		return fmt.Errorf("%s: %w", s.Category, ErrMissingKey)
	}

	switch {
	case s.IndexURL == "" && s.SeedURL == "":
		return fmt.Errorf("%s: %w", s.Name(), ErrMissingTarget)
	case s.IndexURL != "" && s.SeedURL != "":
		return fmt.Errorf("%s: %w", s.Name(), ErrConflictingTargets)
	case s.Mode == IndexMode && s.LinkPattern == nil:
		return fmt.Errorf("%s: %w", s.Name(), ErrMissingPattern)
	}

	if s.MaxIndex <= 0 {
		return fmt.Errorf("%s: %w: max_index must be positive", s.Name(), ErrInvalidPagination)
	}

	if s.Paginate.Enabled && s.Paginate.MaxPages <= 0 {
		return fmt.Errorf("%s: %w: max_pages must be positive", s.Name(), ErrInvalidPagination)
	}

	if s.Paginate.Enabled && s.Paginate.Start < 0 {
		return fmt.Errorf("%s: %w: start must not be negative", s.Name(), ErrInvalidPagination)
	}

	return nil
}
