// Package agent orchestrates retrieval-augmented answering: it pulls relevant
// documentation and code chunks from the store, folds them into a prompt with
// the trailing conversation window, and calls the configured completion
// provider.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/fabfab/docs-agent/llm"
	"github.com/fabfab/docs-agent/store"
)

const (
	defaultDocResults = 5
	codeResults       = 3

	// historyWindow is the number of trailing messages (user and assistant)
	// carried into each prompt: the last three exchanges.
	historyWindow = 6

	docSnippetChars      = 500
	defaultContextBudget = 8000
)

// ErrNotInitialized is returned when a query is attempted without a
// completion client, before any network call is made.
var ErrNotInitialized = errors.New("agent not initialized: completion provider missing")

const systemPrompt = `You are an expert assistant for a documented software platform.
You help developers by providing accurate code examples and explanations based on the indexed documentation.

Your responsibilities:
1. Answer questions about the platform and its customizations
2. Provide working code examples when requested
3. Explain concepts clearly and concisely
4. Always base your answers on the provided documentation context
5. If you're not sure or the documentation doesn't cover a topic, say so

When providing code:
- Include complete, working examples
- Add comments to explain the code
- Specify the language/framework being used`

// Retriever is the similarity-search surface the agent depends on.
type Retriever interface {
	Search(ctx context.Context, query string, k int, kind store.Kind) ([]store.Result, error)
}

// Session holds one conversation's turns in interaction order. It is owned by
// the caller, lives in memory only, and is not safe for concurrent use.
type Session struct {
	turns []llm.Message
}

func NewSession() *Session {
	return &Session{}
}

// Append records a completed exchange.
func (s *Session) Append(question, answer string) {
	s.turns = append(s.turns,
		llm.Message{Role: llm.RoleUser, Content: question},
		llm.Message{Role: llm.RoleAssistant, Content: answer},
	)
}

// Window returns the trailing messages carried into the next prompt.
func (s *Session) Window() []llm.Message {
	if len(s.turns) <= historyWindow {
		return s.turns
	}
	return s.turns[len(s.turns)-historyWindow:]
}

func (s *Session) Clear() {
	s.turns = nil
}

// Len reports the number of stored messages.
func (s *Session) Len() int {
	return len(s.turns)
}

// Context carries the retrieved chunks for one query, split by kind.
type Context struct {
	Documentation []store.Result
	Code          []store.Result
}

func (c Context) Empty() bool {
	return len(c.Documentation) == 0 && len(c.Code) == 0
}

type Agent struct {
	retriever Retriever
	llm       llm.Client
	logger    *log.Logger
}

func New(retriever Retriever, client llm.Client, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.Default()
	}
	return &Agent{retriever: retriever, llm: client, logger: logger}
}

// RetrieveContext runs two searches, one over documentation chunks (k
// results, defaulted when non-positive) and one over code chunks, so both
// kinds are represented when available.
func (a *Agent) RetrieveContext(ctx context.Context, query string, k int) (Context, error) {
	if k <= 0 {
		k = defaultDocResults
	}

	docs, err := a.retriever.Search(ctx, query, k, store.KindDocumentation)
	if err != nil {
		return Context{}, fmt.Errorf("search documentation: %w", err)
	}
	code, err := a.retriever.Search(ctx, query, codeResults, store.KindCode)
	if err != nil {
		return Context{}, fmt.Errorf("search code examples: %w", err)
	}

	return Context{Documentation: docs, Code: code}, nil
}

// FormatContext renders retrieved chunks for the prompt: a documentation
// section with source attribution and 500-char snippets, then a code section
// with full blocks. When the rendered size exceeds budget, whole results are
// dropped lowest-similarity first until it fits.
func FormatContext(c Context, budget int) string {
	if budget <= 0 {
		budget = defaultContextBudget
	}

	type entry struct {
		text       string
		similarity float32
		code       bool
	}

	entries := make([]entry, 0, len(c.Documentation)+len(c.Code))
	for i, r := range c.Documentation {
		entries = append(entries, entry{
			text:       docEntry(i+1, r),
			similarity: r.Similarity,
		})
	}
	for i, r := range c.Code {
		entries = append(entries, entry{
			text:       codeEntry(i+1, r),
			similarity: r.Similarity,
			code:       true,
		})
	}
	if len(entries) == 0 {
		return ""
	}

	total := func() int {
		n := 0
		for _, e := range entries {
			n += len(e.text)
		}
		return n
	}

	for total() > budget && len(entries) > 1 {
		lowest := 0
		for i, e := range entries {
			if e.similarity < entries[lowest].similarity {
				lowest = i
			}
		}
		entries = append(entries[:lowest], entries[lowest+1:]...)
	}

	var docs, code []string
	for _, e := range entries {
		if e.code {
			code = append(code, e.text)
		} else {
			docs = append(docs, e.text)
		}
	}

	var sections []string
	if len(docs) > 0 {
		sections = append(sections, "=== Relevant Documentation ===\n\n"+strings.Join(docs, "\n"))
	}
	if len(code) > 0 {
		sections = append(sections, "=== Relevant Code Examples ===\n\n"+strings.Join(code, "\n"))
	}
	return strings.Join(sections, "\n\n")
}

func docEntry(n int, r store.Result) string {
	title := r.Title
	if title == "" {
		title = "Unknown"
	}
	snippet := r.Text
	if len(snippet) > docSnippetChars {
		snippet = snippet[:docSnippetChars] + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s\n", n, title)
	if r.Source != "" {
		fmt.Fprintf(&b, "   Source: %s\n", r.Source)
	}
	fmt.Fprintf(&b, "   %s\n", snippet)
	return b.String()
}

func codeEntry(n int, r store.Result) string {
	title := r.Title
	if title == "" {
		title = "Unknown"
	}
	return fmt.Sprintf("%d. From: %s\n   %s\n", n, title, r.Text)
}

// Ask answers one question: retrieve, format, prompt, generate, and record
// the exchange on the session. An empty store still produces an answer with
// the context section omitted.
func (a *Agent) Ask(ctx context.Context, session *Session, query string) (string, error) {
	if a.llm == nil {
		return "", ErrNotInitialized
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("question cannot be empty")
	}

	retrieved, err := a.RetrieveContext(ctx, query, defaultDocResults)
	if err != nil {
		return "", err
	}
	formatted := FormatContext(retrieved, defaultContextBudget)
	if formatted == "" {
		a.logger.Printf("no context available for question, answering from the model alone")
	}

	messages := make([]llm.Message, 0, historyWindow+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, session.Window()...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userPrompt(formatted, query)})

	answer, err := a.llm.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	session.Append(query, answer)
	return answer, nil
}

func userPrompt(formattedContext, query string) string {
	var b strings.Builder
	if formattedContext != "" {
		b.WriteString("Based on the following documentation context, please answer this question:\n\n")
		b.WriteString("CONTEXT:\n")
		b.WriteString(formattedContext)
		b.WriteString("\n\n")
	} else {
		b.WriteString("Please answer this question:\n\n")
	}
	b.WriteString("QUESTION:\n")
	b.WriteString(query)
	b.WriteString("\n\nProvide a detailed answer with code examples if relevant. If the question asks for code, provide complete, working code with explanations.")
	return b.String()
}
