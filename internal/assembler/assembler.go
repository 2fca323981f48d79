package assembler

import (
	"fmt"
	"strconv"
	"strings"

	"patentrag/internal/domain"
)

// NoInformationAnswer is returned instead of a prompt when nothing relevant
// was retrieved.
const NoInformationAnswer = "I couldn't find any relevant information in the documents to answer your question."

// EmptySectionPlaceholder stands in for passages without a section title.
const EmptySectionPlaceholder = "N/A"

const promptTemplate = `You are a specialized AI assistant for analyzing patent documents, particularly focusing on material science and metallurgy patents. You help researchers extract accurate, traceable information about material composition, preparation recipes, processing parameters, and their relationships.

CONTEXT (Retrieved from patent documents):
%s

QUERY: %s

INSTRUCTIONS:
1. Answer the query based ONLY on the provided context from the patent documents
2. Be precise and factual - avoid speculation or general knowledge
3. Focus on material composition, preparation recipes, temperatures, and processing parameters when relevant
4. If the context contains specific numbers, temperatures, or measurements, include them exactly as stated
5. If you cannot answer based on the provided context, clearly state this
6. Maintain scientific accuracy and use proper technical terminology
7. When referencing information, quote the exact text from the excerpts and cite the document
8. Use natural language - avoid mentioning "chunks" or "excerpts" in your response
9. Present quoted text clearly using quotation marks for exact passages

IMPORTANT: Your answer will be displayed alongside the source excerpts, so users can verify the information. Prioritize accuracy and traceability over completeness.`

// FormatEvidence renders the retrieved passages as numbered excerpts, in
// outcome order.
func FormatEvidence(outcome domain.RetrievalOutcome) string {
	parts := make([]string, 0, len(outcome.Results))
	for i, r := range outcome.Results {
		var b strings.Builder
		b.WriteString("\n")
		fmt.Fprintf(&b, "EXCERPT %d (Relevance: %s%%)\n", i+1, RelevancePercent(r.Similarity))
		fmt.Fprintf(&b, "Document: %s\n", r.Metadata.DocumentID)
		fmt.Fprintf(&b, "Page: %d\n", r.Metadata.PageNumber)
		fmt.Fprintf(&b, "Section: %s\n", sectionOrPlaceholder(r.Metadata.SectionTitle))
		b.WriteString("\nContent:\n")
		b.WriteString(`"` + r.Text + `"` + "\n")
		b.WriteString("\n---\n")
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n")
}

// BuildPrompt embeds the evidence and the literal query into the instruction
// template. ok is false for an empty outcome, in which case the returned text
// is NoInformationAnswer and no generator call should be made.
func BuildPrompt(query string, outcome domain.RetrievalOutcome) (prompt string, ok bool) {
	if outcome.IsEmpty() {
		return NoInformationAnswer, false
	}
	return fmt.Sprintf(promptTemplate, FormatEvidence(outcome), query), true
}

// RelevancePercent formats a similarity as a percentage with one decimal.
func RelevancePercent(similarity float64) string {
	return strconv.FormatFloat(similarity*100, 'f', 1, 64)
}

func sectionOrPlaceholder(title string) string {
	if strings.TrimSpace(title) == "" {
		return EmptySectionPlaceholder
	}
	return title
}
