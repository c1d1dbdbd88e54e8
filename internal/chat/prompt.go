package chat

import (
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/inkwell-ai/inkwell/internal/index"
)

// systemPrompt constrains the model to the supplied grounding. The
// instruction to state uncertainty is what keeps zero-grounding turns
// from producing fabricated claims.
const systemPrompt = `You are a research assistant for an author. Answer using ONLY the context excerpts provided with each question. Cite sources naturally by their titles when you draw on them. If the context does not contain enough information to answer, say so plainly instead of guessing. Never invent sources, quotes or facts.`

// noGroundingNotice is injected in place of excerpts when retrieval found
// nothing relevant, so the model knows it has no material to work from.
const noGroundingNotice = "No relevant sources were found in the research material for this question."

// degradedNotice flags unranked excerpts so the model does not overstate
// their relevance.
const degradedNotice = "Note: source ranking was unavailable; the excerpts above were selected without relevance ordering."

// buildPrompt assembles the conversation sent to the model: prior turns,
// then a final user turn carrying the labeled grounding excerpts and the
// live question.
func buildPrompt(history []*Message, retrieval *index.Retrieval, question string) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(groundedQuestion(retrieval, question))))
	return msgs
}

// groundedQuestion renders the excerpt block and the question as one
// user turn.
func groundedQuestion(retrieval *index.Retrieval, question string) string {
	var sb strings.Builder
	sb.WriteString("Context from the research material:\n\n")

	if retrieval == nil || len(retrieval.Chunks) == 0 {
		sb.WriteString(noGroundingNotice)
		sb.WriteString("\n")
	} else {
		for _, c := range retrieval.Chunks {
			fmt.Fprintf(&sb, "[Source: %s]\n%s\n\n", c.SourceTitle, c.Content)
		}
		if retrieval.Degraded {
			sb.WriteString(degradedNotice)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}

// deriveTitle builds a session title from the first user message.
func deriveTitle(message string) string {
	title := strings.TrimSpace(message)
	runes := []rune(title)
	if len(runes) > TitleMaxLength {
		title = string(runes[:TitleMaxLength-3]) + "..."
	}
	return title
}

// snippet bounds a chunk excerpt for storage in a citation.
func snippet(content string) string {
	runes := []rune(content)
	if len(runes) > SnippetMaxRunes {
		return string(runes[:SnippetMaxRunes-3]) + "..."
	}
	return content
}
