package assembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentrag/internal/domain"
)

func sampleOutcome() domain.RetrievalOutcome {
	return domain.RetrievalOutcome{
		Results: []domain.RetrievalResult{
			{
				PassageID:  "p1",
				Text:       "The alloy is quenched at 850 C.\nHardness reaches 62 HRC.",
				Similarity: 0.8771,
				Metadata:   domain.PassageMetadata{DocumentID: "US9000001.pdf", PageNumber: 4, SectionTitle: "Example 2"},
			},
			{
				PassageID:  "p2",
				Text:       "Tempering follows for two hours.",
				Similarity: 0.71,
				Metadata:   domain.PassageMetadata{DocumentID: "US9000002.pdf", PageNumber: 1},
			},
		},
		AggregateConfidence: 0.79,
		TotalFound:          2,
	}
}

func TestFormatEvidence(t *testing.T) {
	got := FormatEvidence(sampleOutcome())

	want := "\nEXCERPT 1 (Relevance: 87.7%)\n" +
		"Document: US9000001.pdf\n" +
		"Page: 4\n" +
		"Section: Example 2\n" +
		"\nContent:\n" +
		"\"The alloy is quenched at 850 C.\nHardness reaches 62 HRC.\"\n" +
		"\n---\n" +
		"\n" +
		"\nEXCERPT 2 (Relevance: 71.0%)\n" +
		"Document: US9000002.pdf\n" +
		"Page: 1\n" +
		"Section: N/A\n" +
		"\nContent:\n" +
		"\"Tempering follows for two hours.\"\n" +
		"\n---\n"
	assert.Equal(t, want, got)
}

func TestBuildPrompt(t *testing.T) {
	prompt, ok := BuildPrompt("What hardness is reached?", sampleOutcome())

	require.True(t, ok)
	assert.True(t, strings.HasPrefix(prompt, "You are a specialized AI assistant for analyzing patent documents"))
	assert.Contains(t, prompt, "CONTEXT (Retrieved from patent documents):\n"+FormatEvidence(sampleOutcome()))
	assert.Contains(t, prompt, "\n\nQUERY: What hardness is reached?\n\nINSTRUCTIONS:")
	assert.Less(t, strings.Index(prompt, "EXCERPT 1"), strings.Index(prompt, "EXCERPT 2"))
	assert.True(t, strings.HasSuffix(prompt, "Prioritize accuracy and traceability over completeness."))
}

func TestBuildPrompt_QueryIsLiteral(t *testing.T) {
	prompt, ok := BuildPrompt("100% of %s {{.x}}", sampleOutcome())

	require.True(t, ok)
	assert.Contains(t, prompt, "QUERY: 100% of %s {{.x}}\n")
}

func TestBuildPrompt_Idempotent(t *testing.T) {
	a, _ := BuildPrompt("q", sampleOutcome())
	b, _ := BuildPrompt("q", sampleOutcome())
	assert.Equal(t, a, b)
}

func TestBuildPrompt_EmptyOutcome(t *testing.T) {
	prompt, ok := BuildPrompt("steel hardness", domain.EmptyOutcome())

	assert.False(t, ok)
	assert.Equal(t, NoInformationAnswer, prompt)
	assert.Empty(t, FormatEvidence(domain.EmptyOutcome()))
}

func TestRelevancePercent(t *testing.T) {
	assert.Equal(t, "100.0", RelevancePercent(1))
	assert.Equal(t, "0.0", RelevancePercent(0))
	assert.Equal(t, "-12.5", RelevancePercent(-0.125))
}
