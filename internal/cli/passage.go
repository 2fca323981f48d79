package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPassageCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "passage [id]",
		Short: "Show a stored passage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(generatorUnused, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			e, ok, err := app.Service.Passage(cmd.Context(), args[0])
			if err != nil {
				return commandError(app, "passage lookup", err)
			}
			if !ok {
				return fmt.Errorf("passage %s not found", args[0])
			}
			cmd.Printf("Document: %s\nPage: %d\n", e.Metadata.DocumentID, e.Metadata.PageNumber)
			if e.Metadata.SectionTitle != "" {
				cmd.Printf("Section: %s\n", e.Metadata.SectionTitle)
			}
			cmd.Printf("\n%s\n", e.Text)
			return nil
		},
	}
}
