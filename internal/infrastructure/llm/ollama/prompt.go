package ollama

import (
	"fmt"
	"strings"

	"github.com/Pond500/rag-mcp/internal/core/domain"
)

func buildAnswerPrompt(question, retrievalContext string, history []domain.SessionMessage) string {
	var b strings.Builder
	b.WriteString(`Answer the user question only from the retrieved context below.
Cite passages by their [n] marker. If the context is insufficient, say it directly.

`)

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, msg := range history {
			role := "User"
			if msg.Role == "assistant" {
				role = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, msg.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question:\n%s\n\nContext:\n%s\n", question, retrievalContext)
	return b.String()
}
