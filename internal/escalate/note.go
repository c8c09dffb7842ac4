package escalate

import (
	"context"
	"log/slog"
	"strings"
)

// noReply stands in for a bot response that never happened (odd-length
// history with a trailing unanswered user message).
const noReply = "<No reply>"

// BuildNote renders an audit-ready escalation report from the triggering
// query and the prior history (flat alternating user/bot list).
func BuildNote(userQuery string, history []string) string {
	var sb strings.Builder
	sb.WriteString("=== Escalation Alert ===\n")
	sb.WriteString("A customer support escalation has been triggered.\n\n")
	sb.WriteString("User Query:\n")
	sb.WriteString(userQuery)
	sb.WriteString("\n\n")
	sb.WriteString("Conversation Context (most recent messages last):\n")

	for i := 0; i < len(history); i += 2 {
		userMsg := history[i]
		botMsg := noReply
		if i+1 < len(history) {
			botMsg = history[i+1]
		}
		sb.WriteString("User: ")
		sb.WriteString(userMsg)
		sb.WriteByte('\n')
		sb.WriteString("Bot: ")
		sb.WriteString(botMsg)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Recommended Action: Escalate this issue to a human customer support agent.\n")
	sb.WriteString("=======================")
	return sb.String()
}

// Notifier forwards an escalation note to a human-support side channel.
// Delivery is best effort: callers never retry and never fail a response
// on a notification error.
type Notifier interface {
	Notify(ctx context.Context, note string) error
}

// LogNotifier writes escalation notes to the structured log. It is the
// default sink until a ticketing or paging integration is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, note string) error {
	slog.Info("escalation notification sent to support team", "note", note)
	return nil
}

// NopNotifier drops notes. Used where notification is intentionally unused.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string) error { return nil }

// Dispatch sends the note on a detached goroutine. A failure is logged and
// never joined by the caller; the response already returned is unaffected.
// The detached task carries its own context so an ending request cannot
// cancel the delivery mid-flight.
func Dispatch(n Notifier, note string) {
	if n == nil {
		return
	}
	go func() {
		if err := n.Notify(context.Background(), note); err != nil {
			slog.Warn("escalation notification failed", "error", err)
		}
	}()
}
