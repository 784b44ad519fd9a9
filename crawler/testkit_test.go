package crawler_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"corpuscrawler/crawler"
	"corpuscrawler/internal/budget"
	"corpuscrawler/internal/extract"
	"corpuscrawler/internal/fetcher"
	"corpuscrawler/internal/registry"
	"corpuscrawler/internal/store"
)

var fixtureTime = time.Date(2024, time.June, 1, 12, 34, 56, 0, time.UTC)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return fn(req) }

func responseWithBody(status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}

	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Sleep(ctx context.Context, _ time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// page is a canned response. A zero status means 200.
type page struct {
	status int
	body   string
}

// site serves canned pages and remembers every request in order.
type site struct {
	mu       sync.Mutex
	pages    map[string]page
	requests []string
	onFetch  func(url string)
}

func newSite(pages map[string]page) *site {
	return &site{pages: pages}
}

func (s *site) client() *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			url := req.URL.String()

			s.mu.Lock()
			s.requests = append(s.requests, url)
			p, ok := s.pages[url]
			hook := s.onFetch
			s.mu.Unlock()

			if hook != nil {
				hook(url)
			}

			if !ok {
				return responseWithBody(http.StatusNotFound, []byte("not found"), nil), nil
			}

			status := p.status
			if status == 0 {
				status = http.StatusOK
			}

			return responseWithBody(status, []byte(p.body), http.Header{"Content-Type": []string{"text/html"}}), nil
		}),
	}
}

func (s *site) fetcher() *fetcher.Fetcher {
	return fetcher.New(fetcher.Options{Client: s.client(), Timeout: time.Second})
}

func (s *site) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.requests...)
}

func (s *site) count(url string) int {
	n := 0
	for _, got := range s.requested() {
		if got == url {
			n++
		}
	}

	return n
}

func article(text string) page {
	return page{body: "<html><head><title>Article</title></head><body><p>" + text + "</p></body></html>"}
}

func index(hrefs ...string) page {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, href := range hrefs {
		fmt.Fprintf(&b, `<li><a href="%s">item %s</a></li>`, href, href)
	}
	b.WriteString("</ul></body></html>")

	return page{body: b.String()}
}

func mustRegistry(t *testing.T, yaml string) *registry.Registry {
	t.Helper()

	reg, err := registry.Parse([]byte(yaml))
	require.NoError(t, err)

	return reg
}

type harness struct {
	t     *testing.T
	root  string
	store *store.Store
	site  *site
	opts  crawler.Options
}

func newHarness(t *testing.T, yaml string, pages map[string]page) *harness {
	t.Helper()

	root := t.TempDir()
	st, err := store.Open(root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	s := newSite(pages)

	return &harness{
		t:     t,
		root:  root,
		store: st,
		site:  s,
		opts: crawler.Options{
			Registry:  mustRegistry(t, yaml),
			Fetcher:   s.fetcher(),
			Extractor: extract.NewHTML(),
			Store:     st,
			Budget:    budget.Limits{MinChars: 20},
			MaxDepth:  1,
			RunID:     "run-1",
			Clock:     &testClock{now: fixtureTime},
		},
	}
}

func (h *harness) run(ctx context.Context) crawler.Summary {
	h.t.Helper()

	summary, err := crawler.Run(ctx, h.opts)
	require.NoError(h.t, err)

	return summary
}

func (h *harness) records() []store.Record {
	h.t.Helper()

	var out []store.Record
	require.NoError(h.t, store.ScanIndex(store.IndexPath(h.root), func(rec store.Record) error {
		out = append(out, rec)

		return nil
	}))

	return out
}

func recordsWithStatus(records []store.Record, status store.Status) []store.Record {
	var out []store.Record
	for _, rec := range records {
		if rec.Status == status {
			out = append(out, rec)
		}
	}

	return out
}

// filler returns n bytes of seed repeated.
func filler(n int, seed string) string {
	return strings.Repeat(seed, n/len(seed)+1)[:n]
}
