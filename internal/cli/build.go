package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/manifest"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

var buildJSON bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the inverted index, lemma source and weight vectors",
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "print the build result as JSON")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	opts := []indexer.Option{indexer.WithProgress(progress("Indexing"))}
	if cfg.Paths.ManifestFile != "" {
		file, err := manifest.Load(cfg.Paths.ManifestFile)
		if err != nil && !apperrors.Is(err, apperrors.ErrMissingResource) {
			return err
		}
		opts = append(opts, indexer.WithManifest(file))
	}

	res, err := indexer.NewBuilder(indexer.OptionsFromConfig(cfg), opts...).Build(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if buildJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(out, "Build complete in %s:\n", res.Duration)
	fmt.Fprintf(out, "  Documents: %d\n", res.Documents)
	fmt.Fprintf(out, "  Lemmas:    %d\n", res.Lemmas)
	fmt.Fprintf(out, "  Postings:  %d\n", res.Postings)
	if res.Malformed > 0 || res.Unreadable > 0 {
		fmt.Fprintf(out, "  Skipped:   %d malformed lines, %d unreadable files\n", res.Malformed, res.Unreadable)
	}
	fmt.Fprintf(out, "  Index:     %s\n", res.IndexPath)
	if res.WeightsDir != "" {
		fmt.Fprintf(out, "  Weights:   %s\n", res.WeightsDir)
	}
	if res.BoltPath != "" {
		fmt.Fprintf(out, "  Bolt:      %s\n", res.BoltPath)
	}
	return nil
}
