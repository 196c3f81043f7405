package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/snapshot"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load the snapshot and print its summary as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := snapshot.Load(cmd.Context(), snapshot.PathsFromConfig(cfg.Paths))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Summary())
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
