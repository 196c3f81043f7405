// Package fetcher downloads the pages of a URL list into a directory as
// page_<k>.html, k being the 1-based line number of the URL, and records the
// successful downloads in a "k: url" manifest.
package fetcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/resilience"
)

// ManifestFile is the manifest name inside the pages directory.
const ManifestFile = "index.txt"

// maxPageBytes caps a single download.
const maxPageBytes = 16 << 20

// ManifestSink receives the entries of a run, e.g. the PostgreSQL store.
type ManifestSink interface {
	Upsert(ctx context.Context, entries []manifest.Entry) error
}

type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
	userAgent string
	sink      ManifestSink
	progress  func(done, total int)
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithManifestSink(s ManifestSink) Option {
	return func(f *Fetcher) { f.sink = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

func WithProgress(fn func(done, total int)) Option {
	return func(f *Fetcher) { f.progress = fn }
}

// WithRetry overrides the backoff schedule.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(f *Fetcher) { f.retry = cfg }
}

func New(cfg config.FetcherConfig, opts ...Option) *Fetcher {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	f := &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, 1),
		retry:     resilience.RetryConfig{MaxAttempts: cfg.MaxAttempts},
		userAgent: cfg.UserAgent,
		logger:    slog.Default().With("component", "fetcher"),
	}
	for _, o := range opts {
		o(f)
	}
	if f.metrics == nil {
		f.metrics = metrics.NewNop()
	}
	return f
}

// ReadURLs returns the non-blank lines of r, trimmed.
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if u := strings.TrimSpace(sc.Text()); u != "" {
			urls = append(urls, u)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading url list: %w", err)
	}
	return urls, nil
}

// Result summarises a run.
type Result struct {
	Saved  int      `json:"saved"`
	Failed []string `json:"failed,omitempty"`
}

// Run downloads urls one at a time at the configured rate. Failed URLs are
// logged and skipped; their number is not reused.
func (f *Fetcher) Run(ctx context.Context, urls []string, outDir string) (*Result, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", outDir, err)
	}
	res := &Result{}
	var entries []manifest.Entry
	for i, u := range urls {
		key := i + 1
		body, err := f.Fetch(ctx, u)
		if err == nil {
			err = os.WriteFile(filepath.Join(outDir, PageName(key)), body, 0o644)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.metrics.PagesFetchedTotal.WithLabelValues("error").Inc()
			f.logger.Warn("download failed", "url", u, "error", err)
			res.Failed = append(res.Failed, u)
		} else {
			f.metrics.PagesFetchedTotal.WithLabelValues("ok").Inc()
			f.logger.Info("page saved", "url", u, "file", PageName(key), "bytes", len(body))
			entries = append(entries, manifest.Entry{Key: key, URL: u, FetchedAt: time.Now().UTC()})
			res.Saved++
		}
		if f.progress != nil {
			f.progress(i+1, len(urls))
		}
	}

	if err := manifest.Write(filepath.Join(outDir, ManifestFile), entries); err != nil {
		return res, err
	}
	if f.sink != nil && len(entries) > 0 {
		if err := f.sink.Upsert(ctx, entries); err != nil {
			f.logger.Warn("manifest upsert failed", "error", err)
		}
	}
	return res, nil
}

// Fetch downloads one URL. Network errors and 5xx/429 responses are retried
// with backoff; other non-2xx responses fail at once.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := resilience.Retry(ctx, "fetch", f.retry, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return resilience.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("building request: %w", err))
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := fmt.Errorf("GET %s: %w", url, &StatusError{Code: resp.StatusCode})
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return statusErr
			}
			return resilience.Permanent(statusErr)
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return fmt.Errorf("reading body of %s: %w", url, err)
		}
		body = b
		return nil
	})
	return body, err
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// PageName is "page_<k>.html".
func PageName(key int) string {
	return fmt.Sprintf("page_%d.html", key)
}
