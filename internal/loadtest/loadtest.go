// Package loadtest replays queries against a running search service and
// reports throughput, latency percentiles and status codes.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config describes one run.
type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
	Limit       int
	Client      *http.Client
	// Tick, when set, is called about once a second while the run lasts.
	Tick func(elapsed time.Duration)
}

// Stats accumulates request outcomes from all workers.
type Stats struct {
	total    atomic.Int64
	answered atomic.Int64
	empty    atomic.Int64
	failed   atomic.Int64
	hits     atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 4096),
		codes:     make(map[int]int64),
	}
}

// Record counts one request. A 404 or 422 is a valid "nothing found"
// answer, not an error.
func (s *Stats) Record(d time.Duration, status int, cache string, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	switch {
	case status >= 200 && status < 300:
		s.answered.Add(1)
	case status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		s.empty.Add(1)
	default:
		s.failed.Add(1)
	}
	if cache == "hit" {
		s.hits.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[status]++
	s.mu.Unlock()
}

// Report is the summary of a finished run.
type Report struct {
	Duration   time.Duration `json:"duration"`
	Total      int64         `json:"total"`
	Answered   int64         `json:"answered"`
	Empty      int64         `json:"empty"`
	Failed     int64         `json:"failed"`
	CacheHits  int64         `json:"cache_hits"`
	RPS        float64       `json:"rps"`
	Min        time.Duration `json:"min"`
	Mean       time.Duration `json:"mean"`
	P50        time.Duration `json:"p50"`
	P90        time.Duration `json:"p90"`
	P99        time.Duration `json:"p99"`
	Max        time.Duration `json:"max"`
	StdDev     time.Duration `json:"stddev"`
	StatusCode map[int]int64 `json:"status_codes"`
}

// Run issues queries round-robin from Concurrency workers until Duration
// elapses or ctx is cancelled.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if len(cfg.Queries) == 0 {
		return nil, fmt.Errorf("no queries to replay")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Limit < 1 {
		cfg.Limit = 10
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.Concurrency * 2,
				MaxIdleConnsPerHost: cfg.Concurrency * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	stats := newStats()
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; gctx.Err() == nil; i++ {
				query := cfg.Queries[i%len(cfg.Queries)]
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", cfg.BaseURL, url.QueryEscape(query), cfg.Limit)
				req, err := http.NewRequestWithContext(gctx, http.MethodGet, target, nil)
				if err != nil {
					return fmt.Errorf("building request: %w", err)
				}
				began := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					stats.Record(time.Since(began), 0, "", err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(time.Since(began), resp.StatusCode, resp.Header.Get("X-Cache"), nil)
			}
			return nil
		})
	}
	if cfg.Tick != nil {
		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return
				case <-ticker.C:
					cfg.Tick(time.Since(start))
				}
			}
		}()
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats.report(time.Since(start)), nil
}

func (s *Stats) report(elapsed time.Duration) *Report {
	r := &Report{
		Duration:   elapsed,
		Total:      s.total.Load(),
		Answered:   s.answered.Load(),
		Empty:      s.empty.Load(),
		Failed:     s.failed.Load(),
		CacheHits:  s.hits.Load(),
		StatusCode: make(map[int]int64),
	}
	if elapsed > 0 {
		r.RPS = float64(r.Total) / elapsed.Seconds()
	}

	s.mu.Lock()
	lat := append([]time.Duration(nil), s.latencies...)
	for code, n := range s.codes {
		r.StatusCode[code] = n
	}
	s.mu.Unlock()
	if len(lat) == 0 {
		return r
	}

	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	var sum time.Duration
	for _, l := range lat {
		sum += l
	}
	r.Mean = sum / time.Duration(len(lat))
	var sq float64
	for _, l := range lat {
		d := float64(l - r.Mean)
		sq += d * d
	}
	r.StdDev = time.Duration(math.Sqrt(sq / float64(len(lat))))
	r.Min, r.Max = lat[0], lat[len(lat)-1]
	r.P50 = percentile(lat, 50)
	r.P90 = percentile(lat, 90)
	r.P99 = percentile(lat, 99)
	return r
}

// Print writes a human-readable report.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", r.Total)
	fmt.Fprintf(w, "Answered:        %d\n", r.Answered)
	fmt.Fprintf(w, "Nothing found:   %d\n", r.Empty)
	fmt.Fprintf(w, "Errors:          %d\n", r.Failed)
	fmt.Fprintf(w, "Cache hits:      %d\n", r.CacheHits)
	fmt.Fprintf(w, "Requests/sec:    %.2f\n", r.RPS)
	if r.Total > r.Failed {
		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", r.Min)
		fmt.Fprintf(w, "Mean:   %s\n", r.Mean)
		fmt.Fprintf(w, "P50:    %s\n", r.P50)
		fmt.Fprintf(w, "P90:    %s\n", r.P90)
		fmt.Fprintf(w, "P99:    %s\n", r.P99)
		fmt.Fprintf(w, "Max:    %s\n", r.Max)
		fmt.Fprintf(w, "StdDev: %s\n", r.StdDev)
	}

	codes := make([]int, 0, len(r.StatusCode))
	for code := range r.StatusCode {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	fmt.Fprintln(w, "\n=== Status Codes ===")
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, r.StatusCode[code])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
