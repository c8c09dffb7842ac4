// Package prompt assembles role-tagged message sequences and flattened
// prompt text for the generative model.
package prompt

import (
	"fmt"
	"strings"
)

// Message is one role-tagged turn in an assembled prompt.
type Message struct {
	Role    string
	Content string
}

// knowledgeBase is the fixed support persona and company knowledge injected
// into every conversational prompt.
const knowledgeBase = `Acme Commerce is an online retailer shipping consumer goods worldwide.
Support hours: Monday through Friday, 9:00-18:00 UTC. Email: support@acme.example.
Orders ship within 2 business days; standard delivery takes 3-7 business days.
Returns are accepted within 30 days of delivery in original packaging.
Refunds are issued to the original payment method within 5 business days of inspection.
Passwords can be reset from the sign-in page via the "Forgot password" link.`

const systemInstruction = "You are a customer support assistant for Acme Commerce. " +
	"Answer only questions about Acme Commerce orders, shipping, returns, refunds, and accounts, " +
	"using the knowledge below. Politely decline unrelated questions.\n" +
	"Knowledge base:\n" + knowledgeBase

// Conversational builds the ordered message sequence for a model call: one
// system message, the history mapped to alternating user/assistant roles,
// then the new query as a final user message. An odd-length history keeps
// its trailing unanswered user message unpaired; nothing is dropped or
// padded with a synthetic reply.
func Conversational(userQuery string, history []string) []Message {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: "system", Content: systemInstruction})

	for i := 0; i < len(history); i += 2 {
		msgs = append(msgs, Message{Role: "user", Content: history[i]})
		if i+1 < len(history) {
			msgs = append(msgs, Message{Role: "assistant", Content: history[i+1]})
		}
	}

	msgs = append(msgs, Message{Role: "user", Content: userQuery})
	return msgs
}

// Flatten serializes messages into one prompt string, one "Role: content"
// line per turn, matching what the model call collaborator expects.
func Flatten(msgs []Message) string {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(capitalize(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	return sb.String()
}

// Summary builds the prompt asking the model to summarize a conversation.
func Summary(conversation string) string {
	return fmt.Sprintf(
		"You are a customer support assistant for Acme Commerce. Use the following knowledge base when relevant:\n%s\n\n"+
			"Please provide a concise and clear summary of the following conversation:\n%s",
		knowledgeBase, conversation,
	)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
