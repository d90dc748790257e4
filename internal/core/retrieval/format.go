package retrieval

import (
	"fmt"
	"strings"

	"github.com/Pond500/rag-mcp/internal/core/domain"
)

// formatContext renders retained hits into a single context block the answer
// generator can consume directly, one indexed entry per hit with source
// attribution.
func formatContext(hits []domain.SearchHit) string {
	if len(hits) == 0 {
		return "No relevant information found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Retrieved context (%d passages):\n\n", len(hits))
	for i, hit := range hits {
		b.WriteString(formatAttribution(i+1, hit))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(hit.Text))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAttribution(index int, hit domain.SearchHit) string {
	source := hit.Source.File
	if source == "" {
		source = "unknown"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] (Source: %s", index, source)
	if hit.Source.Page > 0 {
		fmt.Fprintf(&b, ", Page %d", hit.Source.Page)
	}
	if hit.Source.Section != "" {
		fmt.Fprintf(&b, ", Section: %s", hit.Source.Section)
	}
	fmt.Fprintf(&b, ", Relevance: %.2f)", hit.FinalScore())
	return b.String()
}

// summarizeSources groups retained hits by source file in first-seen order.
func summarizeSources(hits []domain.SearchHit) []domain.SourceCount {
	counts := make(map[string]int, len(hits))
	order := make([]string, 0, len(hits))
	for _, hit := range hits {
		file := hit.Source.File
		if file == "" {
			file = "unknown"
		}
		if _, seen := counts[file]; !seen {
			order = append(order, file)
		}
		counts[file]++
	}

	out := make([]domain.SourceCount, 0, len(order))
	for _, file := range order {
		out = append(out, domain.SourceCount{File: file, Chunks: counts[file]})
	}
	return out
}
