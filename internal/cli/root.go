// Package cli implements lemctl, the command-line front end of the offline
// pipeline (fetch, lemmatize, build) and of ad-hoc querying.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/logger"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lemctl",
	Short: "Lemma TF-IDF search toolkit",
	Long: `lemctl drives the offline pipeline and queries the resulting snapshot.

Example usage:
  lemctl fetch urls.txt          # Download pages into paths.pagesDir
  lemctl lemmatize               # Write page_N_lemmas.txt into paths.corpusDir
  lemctl build                   # Rebuild the index and weight vectors
  lemctl query "search words"    # One-shot query (interactive without args)
  lemctl inspect                 # Print the loaded snapshot summary`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logger.SetupWriter(os.Stderr, level, cfg.Logging.Format)
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and LS_* env when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}
