// Package metrics holds the Prometheus collectors of a crawl run.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Visits counts fetch attempts by kind ("index" or "item").
	Visits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpus_crawler_visits_total",
			Help: "Total number of fetch attempts, labeled by page kind.",
		},
		[]string{"kind"},
	)
	// Records counts appended index records by status.
	Records = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpus_crawler_records_total",
			Help: "Total number of index records appended, labeled by status.",
		},
		[]string{"status"},
	)
	// SavedBytes sums the processed text bytes of stored documents.
	SavedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "corpus_crawler_saved_bytes_total",
			Help: "Total bytes of processed text stored.",
		},
	)
	// FetchDuration observes the wall time of each fetch.
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "corpus_crawler_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(Visits)
	prometheus.MustRegister(Records)
	prometheus.MustRegister(SavedBytes)
	prometheus.MustRegister(FetchDuration)
}

// Handler serves the registered metrics.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Expose serves /metrics on addr until ctx is done. It returns the listen
// error, if any.
func Expose(ctx context.Context, addr string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	return nil
}
