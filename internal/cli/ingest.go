package cli

import (
	"github.com/spf13/cobra"

	"patentrag/internal/config"
)

func newIngestCommand(opts *rootOptions) *cobra.Command {
	var (
		chunkSize, overlap int
		replace            bool
	)
	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Index documents",
		Long: `Extracts, chunks and embeds the given PDF or text files into the index.
Arguments may be files, glob patterns or directories.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(generatorUnused, func(cfg *config.AppConfig) {
				if cmd.Flags().Changed("chunk-size") {
					cfg.Chunker.ChunkSize = chunkSize
				}
				if cmd.Flags().Changed("overlap") {
					cfg.Chunker.Overlap = overlap
				}
				if cmd.Flags().Changed("replace") {
					cfg.Ingest.Replace = replace
				}
			})
			if err != nil {
				return err
			}
			defer app.Close()

			summary, err := app.Service.IngestPaths(cmd.Context(), args)
			for _, r := range summary.Reports {
				if r.Aborted {
					cmd.Printf("  %s: aborted (%s)\n", r.DocumentID, r.Reason)
					continue
				}
				cmd.Printf("  %s: %d passages (%d empty pages, %d skipped)\n",
					r.DocumentID, r.PassagesAdded, r.PagesEmpty, r.PagesSkipped)
				if r.PassagesRemoved > 0 {
					cmd.Printf("  %s: replaced %d earlier passages\n", r.DocumentID, r.PassagesRemoved)
				}
			}
			for _, f := range summary.Failures {
				cmd.Printf("  %s: failed: %v\n", f.Path, f.Err)
			}
			if err != nil {
				return err
			}
			cmd.Printf("Indexed %d passages from %d document(s), %d failed.\n",
				summary.PassagesAdded(), len(summary.Reports), len(summary.Failures))
			return nil
		},
	}
	cmd.Flags().IntVar(&chunkSize, "chunk-size", config.DefaultChunkSize, "passage window size in characters")
	cmd.Flags().IntVar(&overlap, "overlap", config.DefaultOverlap, "characters shared by consecutive windows")
	cmd.Flags().BoolVar(&replace, "replace", false, "remove earlier passages of each document before indexing it")
	return cmd
}
