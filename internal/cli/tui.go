package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"patentrag/internal/tui"
)

func newTUICommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Ask questions interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.quietLogs = true
			app, err := opts.open(generatorOptional, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			st, err := app.Service.Stats(cmd.Context())
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%d passages indexed, embedder %s, threshold %.2f",
				st.Passages, st.Embedder, app.Service.Threshold())
			_, err = tea.NewProgram(tui.New(app.Service, summary), tea.WithAltScreen()).Run()
			return err
		},
	}
}
