package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nkov/supportbot/internal/llm"
	"github.com/nkov/supportbot/internal/session"
	"github.com/nkov/supportbot/internal/storage"
)

// fakeModel scripts model responses and records received prompts.
type fakeModel struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (f *fakeModel) Generate(_ context.Context, promptText string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, promptText)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeModel) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// fakeFAQ hits only for configured queries.
type fakeFAQ struct {
	answers map[string]string
}

func (f *fakeFAQ) Answer(query string) (string, bool) {
	a, ok := f.answers[query]
	return a, ok
}

// chanNotifier signals each delivered note on a channel.
type chanNotifier struct {
	notes chan string
}

func (c *chanNotifier) Notify(_ context.Context, note string) error {
	c.notes <- note
	return nil
}

func newTestBot(t *testing.T, model *fakeModel, faqAnswers map[string]string) (*Bot, *chanNotifier) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	notifier := &chanNotifier{notes: make(chan string, 4)}
	b := New(Deps{
		Sessions: session.New(store, 24*time.Hour),
		FAQ:      &fakeFAQ{answers: faqAnswers},
		Model:    model,
		Notifier: notifier,
		Memory:   store,
	})
	return b, notifier
}

func TestSubmitQueryFAQHitSkipsModel(t *testing.T) {
	model := &fakeModel{response: "should never be used"}
	b, _ := newTestBot(t, model, map[string]string{
		"How do I reset my password?": "Use the forgot-password link.",
	})

	res, err := b.SubmitQuery(context.Background(), "How do I reset my password?", "")
	if err != nil {
		t.Fatalf("SubmitQuery: %v", err)
	}
	if res.Response != "Use the forgot-password link." {
		t.Errorf("Response = %q", res.Response)
	}
	if res.Escalated {
		t.Error("FAQ hit flagged as escalated")
	}
	if model.calls() != 0 {
		t.Errorf("model called %d times on FAQ hit, want 0", model.calls())
	}

	// The turn is persisted regardless of path.
	sess, err := b.GetSession(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(sess.History) != 2 {
		t.Errorf("history length = %d, want 2", len(sess.History))
	}
}

func TestSubmitQueryModelPath(t *testing.T) {
	model := &fakeModel{response: "Your order ships tomorrow."}
	b, _ := newTestBot(t, model, nil)

	res, err := b.SubmitQuery(context.Background(), "Where is my order?", "")
	if err != nil {
		t.Fatalf("SubmitQuery: %v", err)
	}
	if res.Response != "Your order ships tomorrow." {
		t.Errorf("Response = %q", res.Response)
	}
	if res.Escalated {
		t.Error("helpful response flagged as escalated")
	}
	if res.SessionID == "" {
		t.Error("no session id returned")
	}

	// The prompt carries the new query as the final user turn.
	if !strings.Contains(model.lastPrompt(), "User: Where is my order?") {
		t.Errorf("prompt missing query:\n%s", model.lastPrompt())
	}
}

func TestSubmitQueryContinuesSession(t *testing.T) {
	model := &fakeModel{response: "Answer."}
	b, _ := newTestBot(t, model, nil)
	ctx := context.Background()

	first, err := b.SubmitQuery(ctx, "first question", "")
	if err != nil {
		t.Fatalf("first SubmitQuery: %v", err)
	}
	second, err := b.SubmitQuery(ctx, "second question", first.SessionID)
	if err != nil {
		t.Fatalf("second SubmitQuery: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("session id changed: %q -> %q", first.SessionID, second.SessionID)
	}

	// The second prompt includes the first turn as history.
	if !strings.Contains(model.lastPrompt(), "first question") {
		t.Errorf("prompt missing prior history:\n%s", model.lastPrompt())
	}

	sess, err := b.GetSession(ctx, first.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(sess.History) != 4 {
		t.Errorf("history length = %d, want 4", len(sess.History))
	}
}

func TestSubmitQueryUnknownSession(t *testing.T) {
	b, _ := newTestBot(t, &fakeModel{response: "x"}, nil)

	_, err := b.SubmitQuery(context.Background(), "hello", "no-such-session")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSubmitQueryEscalates(t *testing.T) {
	model := &fakeModel{response: "I don't know how to help with that."}
	b, notifier := newTestBot(t, model, nil)
	ctx := context.Background()

	// Seed a turn so the note has context to include.
	model.response = "Hello there!"
	first, err := b.SubmitQuery(ctx, "Hi", "")
	if err != nil {
		t.Fatalf("seed SubmitQuery: %v", err)
	}

	model.response = "I don't know how to help with that."
	res, err := b.SubmitQuery(ctx, "Why is my order late?", first.SessionID)
	if err != nil {
		t.Fatalf("SubmitQuery: %v", err)
	}
	if !res.Escalated {
		t.Fatal("unsatisfactory response not escalated")
	}
	if !strings.Contains(res.Response, "Escalation Alert") {
		t.Errorf("response is not the escalation note:\n%s", res.Response)
	}
	if !strings.Contains(res.Response, "Why is my order late?") {
		t.Errorf("note missing triggering query:\n%s", res.Response)
	}
	if !strings.Contains(res.Response, "User: Hi") || !strings.Contains(res.Response, "Bot: Hello there!") {
		t.Errorf("note missing history pair:\n%s", res.Response)
	}

	select {
	case note := <-notifier.notes:
		if note != res.Response {
			t.Error("notified note differs from response")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never dispatched")
	}

	// The escalation note itself is persisted as the bot response.
	sess, err := b.GetSession(ctx, first.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got := sess.History[len(sess.History)-1]; !strings.Contains(got, "Escalation Alert") {
		t.Errorf("persisted response = %q, want the escalation note", got)
	}
}

func TestSubmitQueryModelFailureFallsBack(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("%w after 3 attempts: boom", llm.ErrUnavailable)}
	b, _ := newTestBot(t, model, nil)

	res, err := b.SubmitQuery(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("SubmitQuery: %v", err)
	}
	if res.Response != fallbackMessage {
		t.Errorf("Response = %q, want fallback", res.Response)
	}
	if res.Escalated {
		t.Error("fallback response flagged as escalated")
	}

	// Even the fallback turn is persisted.
	sess, err := b.GetSession(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(sess.History) != 2 {
		t.Errorf("history length = %d, want 2", len(sess.History))
	}
}

func TestCreateSessionSeedsGreeting(t *testing.T) {
	b, _ := newTestBot(t, &fakeModel{response: "x"}, nil)

	sess, msg, err := b.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if msg != greeting {
		t.Errorf("greeting = %q", msg)
	}

	got, err := b.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(got.History) != 2 || got.History[1] != greeting {
		t.Errorf("history = %v, want empty query + greeting", got.History)
	}
}

func TestSummarizeSessionStoresMemory(t *testing.T) {
	model := &fakeModel{response: "Friendly chat about an order."}
	b, _ := newTestBot(t, model, nil)
	ctx := context.Background()

	first, err := b.SubmitQuery(ctx, "Hi", "")
	if err != nil {
		t.Fatalf("SubmitQuery: %v", err)
	}

	summary, err := b.SummarizeSession(ctx, first.SessionID)
	if err != nil {
		t.Fatalf("SummarizeSession: %v", err)
	}
	if summary != "Friendly chat about an order." {
		t.Errorf("summary = %q", summary)
	}

	// The summarization prompt contains the rendered conversation.
	if !strings.Contains(model.lastPrompt(), "User: Hi") {
		t.Errorf("summary prompt missing conversation:\n%s", model.lastPrompt())
	}

	// The next model call sees the stored memory as earlier context.
	model.response = "Noted."
	if _, err := b.SubmitQuery(ctx, "anything else?", first.SessionID); err != nil {
		t.Fatalf("SubmitQuery: %v", err)
	}
	if !strings.Contains(model.lastPrompt(), "Summary: Friendly chat about an order.") {
		t.Errorf("prompt missing contextual memory:\n%s", model.lastPrompt())
	}
}

func TestSummarizeSessionModelFailure(t *testing.T) {
	model := &fakeModel{response: "seed"}
	b, _ := newTestBot(t, model, nil)
	ctx := context.Background()

	first, err := b.SubmitQuery(ctx, "Hi", "")
	if err != nil {
		t.Fatalf("SubmitQuery: %v", err)
	}

	model.err = fmt.Errorf("%w after 3 attempts: down", llm.ErrUnavailable)
	summary, err := b.SummarizeSession(ctx, first.SessionID)
	if err != nil {
		t.Fatalf("SummarizeSession: %v", err)
	}
	if summary != fallbackSummary {
		t.Errorf("summary = %q, want fallback", summary)
	}
}

func TestSummarizeSessionUnknownID(t *testing.T) {
	b, _ := newTestBot(t, &fakeModel{response: "x"}, nil)

	_, err := b.SummarizeSession(context.Background(), "ghost")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestDeleteSessionIdempotentThroughBot(t *testing.T) {
	b, _ := newTestBot(t, &fakeModel{response: "x"}, nil)
	ctx := context.Background()

	res, err := b.SubmitQuery(ctx, "hello", "")
	if err != nil {
		t.Fatalf("SubmitQuery: %v", err)
	}
	if err := b.DeleteSession(ctx, res.SessionID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if err := b.DeleteSession(ctx, res.SessionID); err != nil {
		t.Fatalf("second DeleteSession: %v", err)
	}
	if _, err := b.GetSession(ctx, res.SessionID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("GetSession after delete: err = %v, want ErrSessionNotFound", err)
	}
}
