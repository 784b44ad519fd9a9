package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli"

	"corpuscrawler/crawler"
	"corpuscrawler/internal/budget"
	"corpuscrawler/internal/dedup"
	"corpuscrawler/internal/extract"
	"corpuscrawler/internal/fetcher"
	"corpuscrawler/internal/ledger"
	"corpuscrawler/internal/limiter"
	"corpuscrawler/internal/logging"
	"corpuscrawler/internal/metrics"
	"corpuscrawler/internal/registry"
	"corpuscrawler/internal/robots"
	"corpuscrawler/internal/store"
)

const (
	defaultTargetBytes  = 20_000_000_000
	defaultMaxItems     = 100_000
	defaultMinChars     = 20
	defaultMaxBodyBytes = 10 << 20
)

// Run executes the CLI and writes the JSON run summary to stdout.
// Progress is logged to stderr. A registry that cannot be loaded is
// returned as a *registry.ConfigError.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, client *http.Client, clock limiter.Timer) error {
	app := cli.NewApp()
	app.Name = "corpus-crawler"
	app.Usage = "collect a deduplicated text corpus from curated sources"
	app.UsageText = "corpus-crawler [global options]"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = flags()
	app.Action = func(c *cli.Context) error {
		logger, closer, err := logging.New(logging.Options{
			Level:   c.String("log-level"),
			Verbose: c.Bool("verbose"),
			JSON:    c.Bool("log-json"),
			File:    c.String("log-file"),
			Writer:  stderr,
		})
		if err != nil {
			return err
		}
		defer closer.Close()

		summary, err := crawl(ctx, c, logger, client, clock)
		if summary != nil {
			if writeErr := writeSummary(stdout, *summary); writeErr != nil && err == nil {
				err = writeErr
			}
		}

		return err
	}

	return app.Run(args)
}

func flags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Usage:  "path to sources.yaml (default: " + registry.DefaultPath + ", then XDG config)",
			EnvVar: "CORPUS_CONFIG",
		},
		cli.StringSliceFlag{
			Name:  "category",
			Usage: "only crawl this category (repeatable)",
		},
		cli.StringSliceFlag{
			Name:  "source",
			Usage: "only crawl this source key (repeatable)",
		},
		cli.Int64Flag{
			Name:   "target-bytes",
			Usage:  "stop after storing this many bytes of text",
			Value:  defaultTargetBytes,
			EnvVar: "CORPUS_TARGET_BYTES",
		},
		cli.IntFlag{
			Name:   "max-items",
			Usage:  "stop after storing this many documents",
			Value:  defaultMaxItems,
			EnvVar: "CORPUS_MAX_ITEMS",
		},
		cli.IntFlag{
			Name:  "max-visits",
			Usage: "stop after this many fetch attempts (0 = unlimited)",
		},
		cli.IntFlag{
			Name:  "min-chars",
			Usage: "reject extracted text shorter than this many characters",
			Value: defaultMinChars,
		},
		cli.StringFlag{
			Name:   "user-agent",
			Usage:  "user agent for the first attempt",
			Value:  fetcher.DefaultUserAgent,
			EnvVar: "CORPUS_USER_AGENT",
		},
		cli.BoolFlag{
			Name:  "word-only",
			Usage: "store lower-cased words only",
		},
		cli.BoolFlag{
			Name:  "validate-sources",
			Usage: "discover index links and record counts without fetching items",
		},
		cli.BoolFlag{
			Name:  "exhaust-pagination",
			Usage: "follow pagination past max_pages up to the safety ceiling",
		},
		cli.IntFlag{
			Name:  "max-depth",
			Usage: "link depth followed from a source start URL",
			Value: 1,
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "per-request timeout",
			Value: 30 * time.Second,
		},
		cli.DurationFlag{
			Name:  "delay",
			Usage: "minimum delay between requests to the same host (example: 200ms, 1s)",
		},
		cli.Int64Flag{
			Name:  "max-body-bytes",
			Usage: "largest response body read",
			Value: defaultMaxBodyBytes,
		},
		cli.IntFlag{
			Name:  "workers",
			Usage: "number of sources crawled concurrently",
			Value: 1,
		},
		cli.StringFlag{
			Name:   "data-dir",
			Usage:  "data root for raw, processed and meta files",
			Value:  store.DefaultRoot,
			EnvVar: "CORPUS_DATA_DIR",
		},
		cli.BoolFlag{
			Name:  "respect-robots",
			Usage: "skip URLs disallowed by robots.txt",
		},
		cli.BoolFlag{
			Name:  "resume",
			Usage: "skip text already stored by earlier runs",
		},
		cli.StringFlag{
			Name:   "metrics-addr",
			Usage:  "serve Prometheus metrics on this address (example: :9090)",
			EnvVar: "CORPUS_METRICS_ADDR",
		},
		cli.StringFlag{
			Name:   "log-level",
			Usage:  "debug, info, warn or error",
			Value:  "info",
			EnvVar: "CORPUS_LOG_LEVEL",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "log at debug level",
		},
		cli.BoolFlag{
			Name:  "log-json",
			Usage: "log JSON lines instead of text",
		},
		cli.StringFlag{
			Name:   "log-file",
			Usage:  "also write logs to this rotating file",
			EnvVar: "CORPUS_LOG_FILE",
		},
	}
}

func crawl(
	ctx context.Context,
	c *cli.Context,
	logger *slog.Logger,
	client *http.Client,
	clock limiter.Timer,
) (*crawler.Summary, error) {
	path, err := registry.Find(c.String("config"))
	if err != nil {
		return nil, err
	}

	reg, err := registry.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("registry", "path", path, "sources", len(reg.Sources()))

	st, err := store.Open(c.String("data-dir"))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	options := optionsFromCLI(c, reg, client, clock)
	options.Store = st
	options.Logger = logger

	if c.Bool("respect-robots") {
		options.Robots = robots.NewAgent(client, c.String("user-agent"))
	}

	if c.Bool("resume") {
		led, err := openLedger(ctx, st.Root(), options.Dedup, logger)
		if err != nil {
			return nil, err
		}
		defer led.Close()

		options.Ledger = led
	}

	if addr := c.String("metrics-addr"); addr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			if err := metrics.Expose(metricsCtx, addr, logger); err != nil {
				logger.Error("metrics", "addr", addr, "error", err)
			}
		}()
	}

	summary, err := crawler.Run(ctx, options)

	return &summary, err
}

func optionsFromCLI(
	c *cli.Context,
	reg *registry.Registry,
	client *http.Client,
	clock limiter.Timer,
) crawler.Options {
	fetch := fetcher.New(fetcher.Options{
		Client:       client,
		Timeout:      c.Duration("timeout"),
		UserAgent:    c.String("user-agent"),
		MaxBodyBytes: c.Int64("max-body-bytes"),
		Limiter:      limiter.NewHostLimiter(c.Duration("delay"), clock),
	})

	return crawler.Options{
		Registry: reg,
		Filter: registry.Filter{
			Categories: c.StringSlice("category"),
			Sources:    c.StringSlice("source"),
		},
		Fetcher:   fetch,
		Extractor: extract.NewHTML(),
		Dedup:     dedup.New(),
		Budget: budget.Limits{
			MaxItems:  c.Int("max-items"),
			MaxBytes:  c.Int64("target-bytes"),
			MaxVisits: c.Int("max-visits"),
			MinChars:  c.Int("min-chars"),
		},
		MaxDepth:     c.Int("max-depth"),
		Exhaust:      c.Bool("exhaust-pagination"),
		ValidateOnly: c.Bool("validate-sources"),
		WordOnly:     c.Bool("word-only"),
		Workers:      c.Int("workers"),
		Clock:        clock,
	}
}

// openLedger opens the resume ledger, adds the ok records of the index log it
// is missing and seeds dd with every stored hash.
func openLedger(ctx context.Context, root string, dd *dedup.Deduplicator, logger *slog.Logger) (*ledger.Ledger, error) {
	led, err := ledger.Open(store.LedgerPath(root))
	if err != nil {
		return nil, err
	}

	added, err := led.Backfill(ctx, store.IndexPath(root))
	if err != nil {
		_ = led.Close()

		return nil, fmt.Errorf("backfill ledger: %w", err)
	}

	hashes, err := led.Hashes(ctx)
	if err != nil {
		_ = led.Close()

		return nil, err
	}
	dd.Seed(hashes)

	logger.Info("resume", "ledger", led.Path(), "backfilled", added, "known", len(hashes))

	return led, nil
}

func writeSummary(w io.Writer, summary crawler.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}

	_, err = w.Write(append(data, '\n'))

	return err
}
