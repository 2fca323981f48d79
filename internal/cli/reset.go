package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newResetCommand(opts *rootOptions) *cobra.Command {
	var (
		document string
		yes      bool
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove indexed passages",
		Long: `Deletes every passage from the index, or only the passages of one document
with --document. Deleting everything requires --yes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if document == "" && !yes {
				return errors.New("refusing to empty the index without --yes")
			}
			app, err := opts.open(generatorUnused, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			if document != "" {
				n, err := app.Service.DeleteDocument(cmd.Context(), document)
				if err != nil {
					return commandError(app, "delete", err)
				}
				cmd.Printf("Removed %d passages of %s.\n", n, document)
				return nil
			}
			if err := app.Service.Reset(cmd.Context()); err != nil {
				return commandError(app, "reset", err)
			}
			cmd.Println("Index emptied.")
			return nil
		},
	}
	cmd.Flags().StringVar(&document, "document", "", "only remove passages of this document id (file name)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm removing every passage")
	return cmd
}
