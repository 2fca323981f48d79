package cli

import (
	"github.com/spf13/cobra"
)

func newAskCommand(opts *rootOptions) *cobra.Command {
	var flags retrievalFlags
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed patents",
		Long: `Retrieves supporting passages and asks the configured generator for an
answer grounded in them. Without relevant passages no generator call is made.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(generatorRequired, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			threshold, _ := flags.resolve(cmd, app.Service)
			ans, err := app.Service.Answer(cmd.Context(), args[0], threshold)
			if err != nil {
				return commandError(app, "ask", err)
			}
			if flags.json {
				return writeJSON(cmd, ans)
			}

			cmd.Println(ans.Text)
			if len(ans.Sources) == 0 {
				return nil
			}
			cmd.Printf("\nSources (%d, confidence %.2f):\n", ans.TotalFound, ans.Confidence)
			for i, s := range ans.Sources {
				cmd.Printf("  [%d] %s p.%d (%d%%)\n", i+1, s.Metadata.DocumentID, s.Metadata.PageNumber, s.Percent)
				cmd.Printf("      %s\n", oneLine(s.Snippet))
			}
			return nil
		},
	}
	flags.register(cmd, false)
	return cmd
}
