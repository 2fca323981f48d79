package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"patentrag/internal/assembler"
	"patentrag/internal/domain"
	"patentrag/internal/service"
)

type retrievalFlags struct {
	threshold  float64
	maxResults int
	json       bool
}

func (f *retrievalFlags) register(cmd *cobra.Command, withMaxResults bool) {
	cmd.Flags().Float64VarP(&f.threshold, "threshold", "t", 0, "minimum similarity in [0, 1] (default from config)")
	if withMaxResults {
		cmd.Flags().IntVarP(&f.maxResults, "max-results", "n", 0, "maximum number of passages (default from config)")
	}
	cmd.Flags().BoolVar(&f.json, "json", false, "output as JSON")
}

func (f *retrievalFlags) resolve(cmd *cobra.Command, svc *service.RAGService) (float64, int) {
	threshold, maxResults := svc.Threshold(), svc.MaxResults()
	if cmd.Flags().Changed("threshold") {
		threshold = f.threshold
	}
	if cmd.Flags().Changed("max-results") {
		maxResults = f.maxResults
	}
	return threshold, maxResults
}

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var (
		flags       retrievalFlags
		printPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Retrieve relevant passages",
		Long: `Embeds the query and lists indexed passages whose similarity meets the
threshold, most relevant first. No answer is generated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(generatorUnused, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			threshold, maxResults := flags.resolve(cmd, app.Service)
			outcome, err := app.Service.Retrieve(cmd.Context(), args[0], threshold, maxResults)
			if err != nil {
				return commandError(app, "search", err)
			}
			if printPrompt {
				prompt, _ := app.Service.BuildPrompt(args[0], outcome)
				cmd.Println(prompt)
				return nil
			}
			if flags.json {
				return writeJSON(cmd, outcome)
			}
			printOutcome(cmd, outcome)
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().BoolVar(&printPrompt, "prompt", false, "print the assembled generator prompt instead of the results")
	return cmd
}

func printOutcome(cmd *cobra.Command, outcome domain.RetrievalOutcome) {
	if outcome.IsEmpty() {
		cmd.Println("No relevant passages found.")
		return
	}
	cmd.Printf("%d passage(s), confidence %.2f\n\n", outcome.TotalFound, outcome.AggregateConfidence)
	for i, r := range outcome.Results {
		cmd.Printf("  [%d] %s p.%d (%s%%)  %s\n", i+1, r.Metadata.DocumentID, r.Metadata.PageNumber,
			assembler.RelevancePercent(r.Similarity), r.PassageID)
		if r.Metadata.SectionTitle != "" {
			cmd.Printf("      Section: %s\n", r.Metadata.SectionTitle)
		}
		cmd.Printf("      %s\n\n", oneLine(service.Snippet(r.Text, 200)))
	}
}

func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
