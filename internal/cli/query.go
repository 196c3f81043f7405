package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

const (
	queryPrompt = "\nQuery (or 'q' to quit): "
	quitCommand = "q"
)

var queryLimit int

var queryCmd = &cobra.Command{
	Use:   "query [words...]",
	Short: "Rank documents for a query",
	Long: `Rank documents for the given words. Without arguments lemctl reads one
query per line from stdin until 'q' or end of input.`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 10, "maximum number of results")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	snap, err := snapshot.Load(ctx, snapshot.PathsFromConfig(cfg.Paths))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if snap.Incomplete() {
		for _, p := range snap.Stats.Problems {
			fmt.Fprintf(out, "Warning: %s\n", p)
		}
	}

	var opts []executor.Option
	if cfg.Paths.ManifestFile != "" {
		if file, err := manifest.Load(cfg.Paths.ManifestFile); err == nil {
			opts = append(opts, executor.WithSourceLookup(file))
		}
	}
	exec := executor.New(staticSource{snap}, cfg.Search, opts...)

	if len(args) > 0 {
		return answer(ctx, out, exec, strings.Join(args, " "), queryLimit)
	}
	summary := snap.Summary()
	fmt.Fprintf(out, "Loaded %d lemmas, %d index entries, %d weighted documents.\n",
		summary.Words, summary.Lemmas, summary.Documents)
	return repl(ctx, cmd.InOrStdin(), out, exec, queryLimit)
}

// repl answers one query per input line until quitCommand or EOF.
func repl(ctx context.Context, in io.Reader, out io.Writer, exec *executor.Executor, limit int) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, queryPrompt)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if strings.EqualFold(line, quitCommand) {
			return nil
		}
		if line == "" {
			continue
		}
		if err := answer(ctx, out, exec, line, limit); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// answer prints the ranking for one query. An unrecognised query and an
// empty ranking are reported as messages, not errors.
func answer(ctx context.Context, out io.Writer, exec *executor.Executor, query string, limit int) error {
	res, err := exec.Execute(ctx, query, limit)
	switch {
	case apperrors.Is(err, apperrors.ErrEmptyQuery):
		fmt.Fprintln(out, "No known lemmas in the query.")
		return nil
	case apperrors.Is(err, apperrors.ErrNoResults):
		fmt.Fprintln(out, "Nothing found.")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintln(out, "\nResults (document: relevance):")
	for _, h := range res.Results {
		fmt.Fprintf(out, "Document %d: %.6f", h.DocID, h.Score)
		if h.Source != "" {
			fmt.Fprintf(out, "  %s", h.Source)
		}
		fmt.Fprintln(out)
	}
	return nil
}

type staticSource struct {
	snap *snapshot.Snapshot
}

func (s staticSource) Current() *snapshot.Snapshot { return s.snap }
