package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/fabfab/docs-agent/llm"
	"github.com/fabfab/docs-agent/store"
)

type stubRetriever struct {
	results map[store.Kind][]store.Result
	err     error
	calls   []store.Kind
}

func (s *stubRetriever) Search(ctx context.Context, query string, k int, kind store.Kind) ([]store.Result, error) {
	s.calls = append(s.calls, kind)
	if s.err != nil {
		return nil, s.err
	}
	results := s.results[kind]
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

var _ Retriever = (*stubRetriever)(nil)

type stubLLM struct {
	answer   string
	err      error
	messages [][]llm.Message
}

func (s *stubLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	copied := make([]llm.Message, len(messages))
	copy(copied, messages)
	s.messages = append(s.messages, copied)
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

var _ llm.Client = (*stubLLM)(nil)

func docResult(title, source, text string, similarity float32) store.Result {
	return store.Result{
		Chunk:      store.Chunk{Title: title, Source: source, Text: text, Kind: store.KindDocumentation},
		Similarity: similarity,
	}
}

func codeResult(title, text string, similarity float32) store.Result {
	return store.Result{
		Chunk:      store.Chunk{Title: title, Text: text, Kind: store.KindCode},
		Similarity: similarity,
	}
}

func newTestAgent(retriever Retriever, client llm.Client) *Agent {
	return New(retriever, client, log.New(io.Discard, "", 0))
}

func TestAskWithoutClientFailsBeforeRetrieval(t *testing.T) {
	retriever := &stubRetriever{}
	a := newTestAgent(retriever, nil)

	_, err := a.Ask(context.Background(), NewSession(), "how do I register an event?")
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if len(retriever.calls) != 0 {
		t.Fatalf("expected no retrieval before the initialization check, got %d calls", len(retriever.calls))
	}
}

func TestAskEmptyStoreStillAnswers(t *testing.T) {
	client := &stubLLM{answer: "General guidance without indexed context."}
	a := newTestAgent(&stubRetriever{results: map[store.Kind][]store.Result{}}, client)

	answer, err := a.Ask(context.Background(), NewSession(), "what is a projection?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != client.answer {
		t.Fatalf("unexpected answer: %q", answer)
	}

	prompt := client.messages[0]
	user := prompt[len(prompt)-1]
	if strings.Contains(user.Content, "CONTEXT:") {
		t.Fatalf("expected context section omitted for empty store, got %q", user.Content)
	}
	if !strings.Contains(user.Content, "QUESTION:\nwhat is a projection?") {
		t.Fatalf("question missing from prompt: %q", user.Content)
	}
}

func TestAskMergesDocumentationAndCode(t *testing.T) {
	retriever := &stubRetriever{results: map[store.Kind][]store.Result{
		store.KindDocumentation: {
			docResult("Events Guide", "https://docs.example.com/events", "Events are raised when entities change state.", 0.9),
		},
		store.KindCode: {
			codeResult("Events Guide", "Code example:\nPROCEDURE Raise_Event___;", 0.8),
		},
	}}
	client := &stubLLM{answer: "ok"}
	a := newTestAgent(retriever, client)

	if _, err := a.Ask(context.Background(), NewSession(), "how are events raised?"); err != nil {
		t.Fatalf("ask: %v", err)
	}

	if len(retriever.calls) != 2 {
		t.Fatalf("expected two searches (documentation and code), got %v", retriever.calls)
	}

	user := client.messages[0][len(client.messages[0])-1].Content
	if !strings.Contains(user, "=== Relevant Documentation ===") {
		t.Fatalf("documentation section missing: %q", user)
	}
	if !strings.Contains(user, "=== Relevant Code Examples ===") {
		t.Fatalf("code section missing: %q", user)
	}
	if !strings.Contains(user, "Source: https://docs.example.com/events") {
		t.Fatalf("source attribution missing: %q", user)
	}
}

func TestAskCarriesOnlyTrailingHistory(t *testing.T) {
	client := &stubLLM{answer: "ok"}
	a := newTestAgent(&stubRetriever{}, client)
	session := NewSession()

	for i := 0; i < 5; i++ {
		if _, err := a.Ask(context.Background(), session, fmt.Sprintf("question %d", i)); err != nil {
			t.Fatalf("ask %d: %v", i, err)
		}
	}

	last := client.messages[len(client.messages)-1]
	// system + 6 history messages (3 exchanges) + current user prompt.
	if len(last) != 8 {
		t.Fatalf("expected 8 messages in the final prompt, got %d", len(last))
	}
	if last[0].Role != llm.RoleSystem {
		t.Fatalf("expected system message first, got %q", last[0].Role)
	}
	if !strings.Contains(last[1].Content, "question 1") {
		t.Fatalf("expected oldest carried turn to be question 1, got %q", last[1].Content)
	}
	if session.Len() != 10 {
		t.Fatalf("expected 10 stored messages after 5 exchanges, got %d", session.Len())
	}
}

func TestClearEmptiesTheSession(t *testing.T) {
	client := &stubLLM{answer: "ok"}
	a := newTestAgent(&stubRetriever{}, client)
	session := NewSession()

	if _, err := a.Ask(context.Background(), session, "first question"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	session.Clear()
	if session.Len() != 0 {
		t.Fatalf("expected empty session after clear, got %d messages", session.Len())
	}

	if _, err := a.Ask(context.Background(), session, "second question"); err != nil {
		t.Fatalf("ask: %v", err)
	}

	last := client.messages[len(client.messages)-1]
	if len(last) != 2 {
		t.Fatalf("expected only system and user messages after clear, got %d", len(last))
	}
	for _, msg := range last {
		if strings.Contains(msg.Content, "first question") {
			t.Fatal("cleared turn leaked into the prompt")
		}
	}
}

func TestAskPropagatesProviderErrorWithoutRecordingTurn(t *testing.T) {
	provErr := &llm.ProviderError{Provider: "openai", Err: errors.New("rate limited")}
	client := &stubLLM{err: provErr}
	a := newTestAgent(&stubRetriever{}, client)
	session := NewSession()

	_, err := a.Ask(context.Background(), session, "anything")
	var pe *llm.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if session.Len() != 0 {
		t.Fatalf("failed exchange must not be recorded, got %d messages", session.Len())
	}
}

func TestFormatContextTruncatesDocumentationSnippets(t *testing.T) {
	long := strings.Repeat("x", 700)
	formatted := FormatContext(Context{
		Documentation: []store.Result{docResult("Long Page", "https://docs.example.com/long", long, 0.9)},
	}, 0)

	if strings.Contains(formatted, long) {
		t.Fatal("documentation snippet was not truncated")
	}
	if !strings.Contains(formatted, strings.Repeat("x", 500)+"...") {
		t.Fatal("expected a 500-char snippet with ellipsis")
	}
}

func TestFormatContextDropsLowestRankedOverBudget(t *testing.T) {
	c := Context{
		Documentation: []store.Result{
			docResult("Keep", "https://docs.example.com/keep", strings.Repeat("a", 400), 0.9),
			docResult("Drop", "https://docs.example.com/drop", strings.Repeat("b", 400), 0.2),
		},
	}

	formatted := FormatContext(c, 500)
	if !strings.Contains(formatted, "Keep") {
		t.Fatalf("highest-ranked result was dropped: %q", formatted)
	}
	if strings.Contains(formatted, "Drop") {
		t.Fatalf("lowest-ranked result survived the budget: %q", formatted)
	}
}

func TestFormatContextEmpty(t *testing.T) {
	if got := FormatContext(Context{}, 0); got != "" {
		t.Fatalf("expected empty string for empty context, got %q", got)
	}
}

func TestRetrieveContextDefaultsResultCount(t *testing.T) {
	results := make([]store.Result, 10)
	for i := range results {
		results[i] = docResult(fmt.Sprintf("Page %d", i), "", "body", 0.5)
	}
	retriever := &stubRetriever{results: map[store.Kind][]store.Result{store.KindDocumentation: results}}
	a := newTestAgent(retriever, &stubLLM{answer: "ok"})

	c, err := a.RetrieveContext(context.Background(), "query", 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(c.Documentation) != 5 {
		t.Fatalf("expected default of 5 documentation results, got %d", len(c.Documentation))
	}
}
