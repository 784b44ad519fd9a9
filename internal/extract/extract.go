// Package extract turns fetched page bodies into normalized text and
// candidate links. The crawl engine only depends on the Extractor interface;
// HTML is the default implementation.
package extract

import (
	"errors"
	"regexp"
)

// ErrNoText is returned when a page yields no meaningful text.
// An empty result is a failure, never an empty success.
var ErrNoText = errors.New("no-text")

// Document is the text extracted from one page.
type Document struct {
	Text          string
	Title         string
	PublishedDate string
	Language      string
}

// Link is a candidate URL found on an index page.
type Link struct {
	URL   string
	Title string
}

// Extractor is the pluggable extraction capability.
type Extractor interface {
	// Extract returns normalized text for body, or ErrNoText.
	Extract(body []byte, pageURL string) (Document, error)

	// Links returns absolute URLs whose href matches pattern, resolved against
	// pageURL, in document order, without repeats, capped at limit.
	Links(body []byte, pageURL string, pattern *regexp.Regexp, limit int) ([]Link, error)
}
