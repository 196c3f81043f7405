package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/fetcher"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/postgres"
)

var fetchOut string

var fetchCmd = &cobra.Command{
	Use:   "fetch [urls-file]",
	Short: "Download pages listed one URL per line",
	Long: `Download every URL of the list into page_N.html files and record the
successful ones in index.txt as "N: url" lines. N is the 1-based line
number, so a failed URL leaves a gap.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "output directory (default paths.pagesDir)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	urlsFile := cfg.Fetcher.URLsFile
	if len(args) > 0 {
		urlsFile = args[0]
	}
	if urlsFile == "" {
		return fmt.Errorf("no url list given and fetcher.urlsFile is empty")
	}
	outDir := fetchOut
	if outDir == "" {
		outDir = cfg.Paths.PagesDir
	}

	f, err := os.Open(urlsFile)
	if err != nil {
		return fmt.Errorf("opening url list: %w", err)
	}
	urls, err := fetcher.ReadURLs(f)
	f.Close()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	opts := []fetcher.Option{fetcher.WithProgress(progress("Fetching"))}
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		store := manifest.NewPGStore(pg, 0)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		opts = append(opts, fetcher.WithManifestSink(store))
	}

	res, err := fetcher.New(cfg.Fetcher, opts...).Run(ctx, urls, outDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Downloaded %d of %d pages into %s\n", res.Saved, len(urls), outDir)
	for _, u := range res.Failed {
		fmt.Fprintf(out, "  failed: %s\n", u)
	}
	return nil
}
