package extract

import (
	"fmt"
	"strings"
)

const factSystemPrompt = `You are a fact extraction service. Extract only verifiable facts from content: who, what, where, when. Never interpret, never assess importance, never predict effects. Respond STRICTLY with a single valid JSON object and nothing else.`

// buildFactPrompt constructs the constrained facts-only prompt for a
// single piece of content.
func buildFactPrompt(rawContent string, meta SourceMeta) string {
	var b strings.Builder

	b.WriteString("Extract the factual core of the following content into a single JSON object.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Facts only: who, what, where, when. No opinions, no implications, no importance judgments.\n")
	b.WriteString("- event_type classifies what happened (e.g. \"sanction\", \"strike\", \"outage\", \"policy_change\").\n")
	b.WriteString("- confidence (0-100) reflects data quality of the source material only.\n")
	b.WriteString("- Use empty strings/arrays for fields the content does not support.\n\n")
	b.WriteString("Respond with JSON using this schema:\n")
	b.WriteString(`{
  "event_type": "...",
  "headline": "...",
  "summary": "...",
  "date": "YYYY-MM-DD",
  "location": "...",
  "actors": ["..."],
  "sectors": ["..."],
  "confidence": 0
}`)
	b.WriteString("\n\n")

	if meta.Name != "" {
		fmt.Fprintf(&b, "Source: %s", meta.Name)
		if meta.URL != "" {
			fmt.Fprintf(&b, " (%s)", meta.URL)
		}
		b.WriteString("\n")
	}
	if !meta.Published.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", meta.Published.Format("2006-01-02"))
	}
	b.WriteString("\nContent:\n")
	b.WriteString(rawContent)

	return b.String()
}
