package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"corpuscrawler/internal/limiter"
)

const (
	// DefaultUserAgent identifies the crawler on the first attempt.
	DefaultUserAgent = "corpus-crawler/0.1"

	// FallbackUserAgent is sent on the single retry after a 403.
	FallbackUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	fallbackAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptEncoding = "gzip, deflate, br"

	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 10 << 20
)

var (
	// ErrStatus marks a response whose final status was not 2xx.
	ErrStatus = errors.New("unexpected http status")

	// ErrBodyTooLarge marks a response body above the configured cap.
	ErrBodyTooLarge = errors.New("response body too large")

	errInvalidRequest = errors.New("invalid request")
)

// FetchError is returned for any failed fetch. The caller records it against
// the URL and moves on; it never aborts a run.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Result contains the HTTP response data.
// FinalURL differs from URL when the transport followed a redirect.
type Result struct {
	URL        string
	FinalURL   string
	StatusCode int
	Header     http.Header
	Body       []byte
	Retried    bool
}

// Options configures a Fetcher. Zero values fall back to defaults.
type Options struct {
	Client            *http.Client
	Timeout           time.Duration
	UserAgent         string
	FallbackUserAgent string
	MaxBodyBytes      int64
	Limiter           *limiter.HostLimiter
}

// Fetcher performs single HTTP GETs with a per-request timeout.
type Fetcher struct {
	client        *http.Client
	timeout       time.Duration
	userAgent     string
	fallbackAgent string
	maxBodyBytes  int64
	limiter       *limiter.HostLimiter
}

// New creates a Fetcher with the provided configuration.
func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	fallback := opts.FallbackUserAgent
	if fallback == "" {
		fallback = FallbackUserAgent
	}

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	return &Fetcher{
		client:        client,
		timeout:       timeout,
		userAgent:     userAgent,
		fallbackAgent: fallback,
		maxBodyBytes:  maxBody,
		limiter:       opts.Limiter,
	}
}

// Fetch performs a GET request. A 403 is retried exactly once with a
// browser-like user agent and a Referer equal to the URL. Any error,
// including a non-2xx final status, is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	result, err := f.fetchOnce(ctx, rawURL, f.userAgent, false)
	if err == nil && result.StatusCode == http.StatusForbidden {
		result, err = f.fetchOnce(ctx, rawURL, f.fallbackAgent, true)
		result.Retried = true
	}

	if err != nil {
		return result, &FetchError{URL: rawURL, StatusCode: result.StatusCode, Err: err}
	}

	if result.StatusCode < http.StatusOK || result.StatusCode >= http.StatusMultipleChoices {
		return result, &FetchError{
			URL:        rawURL,
			StatusCode: result.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrStatus, statusText(result.StatusCode)),
		}
	}

	return result, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string, userAgent string, browserLike bool) (Result, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Result{URL: rawURL}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Result{URL: rawURL}, fmt.Errorf("%w: unsupported scheme %q", errInvalidRequest, parsedURL.Scheme)
	}

	if err := f.limiter.Wait(ctx, parsedURL.Host); err != nil {
		return Result{URL: rawURL}, err
	}

	return f.doRequest(ctx, parsedURL, userAgent, browserLike)
}

func (f *Fetcher) doRequest(ctx context.Context, target *url.URL, userAgent string, browserLike bool) (Result, error) {
	rawURL := target.String()

	requestCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(requestCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{URL: rawURL}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	request.Header.Set("User-Agent", userAgent)
	request.Header.Set("Accept-Encoding", acceptEncoding)
	if browserLike {
		request.Header.Set("Accept", fallbackAccept)
		request.Header.Set("Referer", rawURL)
	}

	response, err := f.client.Do(request)
	if err != nil {
		return Result{URL: rawURL}, err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	result := Result{
		URL:        rawURL,
		FinalURL:   rawURL,
		StatusCode: response.StatusCode,
		Header:     response.Header,
	}
	if response.Request != nil && response.Request.URL != nil {
		result.FinalURL = response.Request.URL.String()
	}

	reader, err := decodeBody(response)
	if err != nil {
		return result, err
	}
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodyBytes+1))
	if err != nil {
		return result, fmt.Errorf("read body: %w", err)
	}

	if int64(len(body)) > f.maxBodyBytes {
		return result, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, f.maxBodyBytes)
	}

	result.Body = body

	return result, nil
}

func statusText(statusCode int) string {
	text := http.StatusText(statusCode)
	if text == "" {
		return fmt.Sprintf("http status %d", statusCode)
	}

	return fmt.Sprintf("%d %s", statusCode, text)
}

// decodeBody unwraps the Content-Encoding of response. The cap on body size
// applies to the decoded bytes.
func decodeBody(response *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(response.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(response.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}

		return gz, nil
	case "br":
		return io.NopCloser(brotli.NewReader(response.Body)), nil
	case "deflate":
		return flate.NewReader(response.Body), nil
	default:
		return io.NopCloser(response.Body), nil
	}
}
