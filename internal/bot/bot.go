// Package bot orchestrates a support query end to end: session resolution,
// FAQ short-circuit, model call, escalation, and turn persistence.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nkov/supportbot/internal/escalate"
	"github.com/nkov/supportbot/internal/llm"
	"github.com/nkov/supportbot/internal/prompt"
	"github.com/nkov/supportbot/internal/session"
)

// fallbackMessage is returned when the model endpoint stays unreachable
// after retries. It is a normal, non-escalated response.
const fallbackMessage = "Sorry, I'm having trouble processing your request at the moment."

// fallbackSummary is returned when summarization fails.
const fallbackSummary = "Unable to generate summary at this time."

// greeting opens every explicitly created session.
const greeting = "Hello! How can I assist you today?"

// Generator is the opaque model-call collaborator: a prompt in, text out.
// Implemented by llm.Client.
type Generator interface {
	Generate(ctx context.Context, promptText string) (string, error)
}

// FAQ answers a query from the static table, or reports a miss.
// Implemented by faq.Matcher.
type FAQ interface {
	Answer(query string) (string, bool)
}

// MemoryStore persists the auxiliary contextual memory attached to a
// session. Implemented by storage.Store.
type MemoryStore interface {
	GetContextualMemory(ctx context.Context, sessionID string) ([]string, error)
	SetContextualMemory(ctx context.Context, sessionID string, items []string) error
}

// Result is the terminal state of one submitted query.
type Result struct {
	Response  string
	SessionID string
	Escalated bool
}

// Deps holds the collaborators a Bot is wired with.
type Deps struct {
	Sessions *session.Cache
	FAQ      FAQ
	Model    Generator
	Notifier escalate.Notifier // nil disables notifications
	Memory   MemoryStore
}

// Bot ties the support pipeline together. All state lives in the injected
// collaborators; the Bot itself is stateless and safe for concurrent use.
type Bot struct {
	sessions *session.Cache
	faq      FAQ
	model    Generator
	notifier escalate.Notifier
	memory   MemoryStore
}

// New wires a Bot from its dependencies.
func New(deps Deps) *Bot {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = escalate.NopNotifier{}
	}
	return &Bot{
		sessions: deps.Sessions,
		faq:      deps.FAQ,
		model:    deps.Model,
		notifier: notifier,
		memory:   deps.Memory,
	}
}

// SubmitQuery answers one user query. A supplied session id must exist;
// an empty id creates a new session. The completed turn is always
// persisted, whichever path produced the response.
func (b *Bot) SubmitQuery(ctx context.Context, query, sessionID string) (Result, error) {
	var sess session.Session
	var err error
	if sessionID != "" {
		sess, err = b.sessions.Get(ctx, sessionID)
		if err != nil {
			return Result{}, err
		}
	} else {
		sess, err = b.sessions.Create(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("creating session: %w", err)
		}
	}

	response, escalated := b.answer(ctx, query, sess)

	if err := b.sessions.AddTurn(ctx, sess.ID, query, response); err != nil {
		return Result{}, fmt.Errorf("persisting turn: %w", err)
	}

	return Result{Response: response, SessionID: sess.ID, Escalated: escalated}, nil
}

// answer produces the response text for a query: FAQ hit, model response,
// escalation note, or the safe fallback.
func (b *Bot) answer(ctx context.Context, query string, sess session.Session) (string, bool) {
	if answer, ok := b.faq.Answer(query); ok {
		slog.Debug("FAQ hit", "session_id", sess.ID)
		return answer, false
	}

	// Contextual memory acts as earlier turns ahead of the live history.
	memoryItems := b.contextualMemory(ctx, sess.ID)
	fullContext := make([]string, 0, len(memoryItems)+len(sess.History))
	fullContext = append(fullContext, memoryItems...)
	fullContext = append(fullContext, sess.History...)

	msgs := prompt.Conversational(query, fullContext)
	text, err := b.model.Generate(ctx, prompt.Flatten(msgs))
	if err != nil {
		if !errors.Is(err, llm.ErrUnavailable) {
			slog.Error("model call failed", "session_id", sess.ID, "error", err)
		}
		return fallbackMessage, false
	}

	if escalate.Unsatisfactory(text) {
		slog.Info("escalation triggered", "session_id", sess.ID)
		note := escalate.BuildNote(query, sess.History)
		escalate.Dispatch(b.notifier, note)
		return note, true
	}

	return text, false
}

// CreateSession allocates a session seeded with the bot greeting turn.
func (b *Bot) CreateSession(ctx context.Context) (session.Session, string, error) {
	sess, err := b.sessions.Create(ctx)
	if err != nil {
		return session.Session{}, "", fmt.Errorf("creating session: %w", err)
	}
	if err := b.sessions.AddTurn(ctx, sess.ID, "", greeting); err != nil {
		return session.Session{}, "", fmt.Errorf("persisting greeting: %w", err)
	}
	return sess, greeting, nil
}

// GetSession returns the session for id, or session.ErrSessionNotFound.
func (b *Bot) GetSession(ctx context.Context, id string) (session.Session, error) {
	return b.sessions.Get(ctx, id)
}

// ListSessions returns all live sessions.
func (b *Bot) ListSessions(ctx context.Context) ([]session.Session, error) {
	return b.sessions.List(ctx)
}

// DeleteSession removes a session and its conversation. Idempotent.
func (b *Bot) DeleteSession(ctx context.Context, id string) error {
	return b.sessions.Delete(ctx, id)
}

// SummarizeSession asks the model for a summary of the session's
// conversation and appends it to the session's contextual memory. A model
// failure yields a fixed fallback summary, not an error.
func (b *Bot) SummarizeSession(ctx context.Context, id string) (string, error) {
	sess, err := b.sessions.Get(ctx, id)
	if err != nil {
		return "", err
	}

	summary, err := b.model.Generate(ctx, prompt.Summary(renderConversation(sess.History)))
	if err != nil {
		slog.Warn("summarization failed", "session_id", id, "error", err)
		return fallbackSummary, nil
	}

	b.storeSummary(ctx, id, summary)
	return summary, nil
}

// storeSummary appends "Summary: <text>" to the session's contextual
// memory. Failures are logged only; the summary already exists for the caller.
func (b *Bot) storeSummary(ctx context.Context, sessionID, summary string) {
	if b.memory == nil {
		return
	}
	existing, err := b.memory.GetContextualMemory(ctx, sessionID)
	if err != nil {
		slog.Warn("reading contextual memory failed", "session_id", sessionID, "error", err)
		return
	}
	updated := append(existing, "Summary: "+summary)
	if err := b.memory.SetContextualMemory(ctx, sessionID, updated); err != nil {
		slog.Warn("storing contextual memory failed", "session_id", sessionID, "error", err)
	}
}

// contextualMemory reads the session's auxiliary notes, degrading to none
// on any store trouble.
func (b *Bot) contextualMemory(ctx context.Context, sessionID string) []string {
	if b.memory == nil {
		return nil
	}
	items, err := b.memory.GetContextualMemory(ctx, sessionID)
	if err != nil {
		slog.Warn("reading contextual memory failed", "session_id", sessionID, "error", err)
		return nil
	}
	return items
}

// renderConversation flattens an alternating history into "User:"/"Bot:"
// lines for the summarization prompt.
func renderConversation(history []string) string {
	var sb strings.Builder
	for i, msg := range history {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if i%2 == 0 {
			sb.WriteString("User: ")
		} else {
			sb.WriteString("Bot: ")
		}
		sb.WriteString(msg)
	}
	return sb.String()
}
