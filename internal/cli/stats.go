package cli

import (
	"github.com/spf13/cobra"
)

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.open(generatorUnused, nil)
			if err != nil {
				return commandError(app, "stats", err)
			}
			defer app.Close()

			st, err := app.Service.Stats(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Passages:  %d\n", st.Passages)
			cmd.Printf("Store:     %s\n", app.Config.VectorStore.Type)
			cmd.Printf("Embedder:  %s (%d dimensions)\n", st.Embedder, st.Dimension)
			return nil
		},
	}
}
