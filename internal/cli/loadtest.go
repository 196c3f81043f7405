package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/fetcher"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/loadtest"
)

var (
	loadURL         string
	loadConcurrency int
	loadDuration    time.Duration
	loadQueries     string
	loadJSON        bool
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest [queries...]",
	Short: "Replay queries against a running search service",
	Long: `Replay queries round-robin against /api/v1/search and print throughput,
latency percentiles and status codes. Queries come from the arguments or
from --queries, one per line.`,
	RunE: runLoadtest,
}

func init() {
	f := loadtestCmd.Flags()
	f.StringVar(&loadURL, "url", "", "base URL of the search service (default http://localhost:<server.port>)")
	f.IntVarP(&loadConcurrency, "concurrency", "c", 10, "number of concurrent workers")
	f.DurationVar(&loadDuration, "duration", 30*time.Second, "test duration")
	f.StringVar(&loadQueries, "queries", "", "file with one query per line")
	f.BoolVar(&loadJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(loadtestCmd)
}

func runLoadtest(cmd *cobra.Command, args []string) error {
	queries := args
	if loadQueries != "" {
		fh, err := os.Open(loadQueries)
		if err != nil {
			return fmt.Errorf("opening query list: %w", err)
		}
		more, err := fetcher.ReadURLs(fh)
		fh.Close()
		if err != nil {
			return err
		}
		queries = append(queries, more...)
	}
	base := loadURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	seconds := int(loadDuration / time.Second)
	tick := progress("Load testing")
	rep, err := loadtest.Run(cmd.Context(), loadtest.Config{
		BaseURL:     base,
		Concurrency: loadConcurrency,
		Duration:    loadDuration,
		Queries:     queries,
		Limit:       cfg.Search.DefaultLimit,
		Tick: func(elapsed time.Duration) {
			tick(min(int(elapsed/time.Second), seconds), seconds)
		},
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if loadJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	rep.Print(out)
	if rep.Total == 0 {
		return fmt.Errorf("no request completed; is the service running at %s?", base)
	}
	return nil
}
