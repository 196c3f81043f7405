package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/lemmatizer"
)

var (
	lemmatizePages string
	lemmatizeOut   string
)

var lemmatizeCmd = &cobra.Command{
	Use:   "lemmatize",
	Short: "Turn fetched pages into per-page lemma files",
	Args:  cobra.NoArgs,
	RunE:  runLemmatize,
}

func init() {
	lemmatizeCmd.Flags().StringVar(&lemmatizePages, "pages", "", "directory of page_N.html files (default paths.pagesDir)")
	lemmatizeCmd.Flags().StringVarP(&lemmatizeOut, "out", "o", "", "output directory (default paths.corpusDir)")
	rootCmd.AddCommand(lemmatizeCmd)
}

func runLemmatize(cmd *cobra.Command, args []string) error {
	pagesDir := orDefault(lemmatizePages, cfg.Paths.PagesDir)
	outDir := orDefault(lemmatizeOut, cfg.Paths.CorpusDir)

	analyzer, err := lemmatizer.NewSnowballAnalyzer(cfg.Lemmatizer.Language)
	if err != nil {
		return err
	}
	filter, err := lemmatizer.FilterFromConfig(cfg.Lemmatizer)
	if err != nil {
		return err
	}
	pipeline, err := lemmatizer.NewPipeline(analyzer, filter, cfg.Lemmatizer.Workers,
		lemmatizer.WithProgress(progress("Lemmatizing")))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	res, err := pipeline.Run(cmd.Context(), pagesDir, outDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Lemmatized %d pages (%d distinct lemmas) into %s\n", res.Pages, res.Lemmas, outDir)
	for _, p := range res.Failed {
		fmt.Fprintf(out, "  failed: %s\n", p)
	}
	return nil
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
