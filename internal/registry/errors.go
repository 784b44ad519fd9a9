package registry

import (
	"errors"
	"fmt"
)

// Registry validation errors. Callers match them with errors.Is.
var (
	// ErrConfigNotFound is returned when no registry file can be located.
	ErrConfigNotFound = errors.New("source registry not found")

	// ErrNoCategories is returned when the file declares no categories.
	ErrNoCategories = errors.New("no categories defined")

	// ErrMissingKey is returned for a source without a key.
	ErrMissingKey = errors.New("source key is required")

	// ErrDuplicateKey is returned when a key repeats within one category.
	ErrDuplicateKey = errors.New("duplicate source key")

	// ErrMissingTarget is returned when a source has neither html_index nor seed.
	ErrMissingTarget = errors.New("source needs html_index or seed")

	// ErrConflictingTargets is returned when a source sets both html_index and seed.
	ErrConflictingTargets = errors.New("source cannot set both html_index and seed")

	// ErrMissingPattern is returned for an index source without link_regex.
	ErrMissingPattern = errors.New("index source needs link_regex")

	// ErrInvalidPagination is returned for a negative or zero pagination bound.
	ErrInvalidPagination = errors.New("invalid pagination")
)

// ConfigError wraps any failure to load the registry. It is fatal:
// nothing is fetched when it occurs.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}

	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
