// Package agent orchestrates shopping conversations: it persists turns,
// assembles the bounded context window, drives the reasoning/tool loop, and
// streams progress events to the transport.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/trailpost/shopagent/pkg/agent/contextwindow"
	"github.com/trailpost/shopagent/pkg/agent/llm"
	"github.com/trailpost/shopagent/pkg/agent/productref"
	"github.com/trailpost/shopagent/pkg/agent/summarize"
	"github.com/trailpost/shopagent/pkg/agent/tokens"
	"github.com/trailpost/shopagent/pkg/agent/tools"
	"github.com/trailpost/shopagent/pkg/agent/turnstore"
	"github.com/trailpost/shopagent/pkg/agent/types"
)

const basePrompt = `You are a concise, helpful outdoor gear shopping assistant.

## Core Principle
You can ONLY discuss products returned by search_products. Never invent or assume products exist. When in doubt, search first.

## Displaying Products
- Format: [ID:7] UltraLight 20F Sleeping Bag — $149.99
- The [ID:X] tag is critical. Always include it; it is how you track products across turns.
- When the user refers to "the first one" or "the cheaper one", look up the [ID:X] tag in your earlier messages to resolve the correct product.

## Cart Operations
- Adding: If only one product matches, add it directly. If ambiguous, ask which one.
- Removing: Call get_current_cart first to see what's there. If the user says "all", remove each one.
- Wrong item added: Immediately remove_from_cart the wrong item, add_to_cart the right one, and briefly apologize.

## Style
- Be concise. Use bullet points for product lists.
- When comparing, highlight price, weight, and key feature differences.
- Redirect off-topic questions politely.`

const (
	removalAskFragment  = "If multiple cart items match a removal request, ask which one before removing."
	removalAutoFragment = "If multiple cart items match a removal request, remove the closest match without asking."
)

// ChatRequest is one inbound user turn.
type ChatRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId"`
	Message        string `json:"message"`
}

// ToolCallRecord describes one tool invocation made while handling a turn.
type ToolCallRecord struct {
	Name   string         `json:"name"`
	Input  map[string]any `json:"input,omitempty"`
	Output string         `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ChatResponse is the outcome of one handled turn. ProductRefs lists the
// products cited in the reply, decoded from their inline tags.
type ChatResponse struct {
	ConversationID string           `json:"conversationId"`
	Reply          string           `json:"reply"`
	State          State            `json:"state"`
	ProductRefs    []productref.Ref `json:"productRefs,omitempty"`
	ToolCalls      []ToolCallRecord `json:"toolCalls,omitempty"`
}

// Agent drives the conversation loop.
type Agent struct {
	provider  llm.Provider
	store     turnstore.Store
	tools     *tools.Registry
	assembler *contextwindow.Assembler
	config    Config
	logger    *slog.Logger

	// One writer per conversation at a time.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option configures the agent.
type Option func(*Agent)

// WithConfig sets the agent config.
func WithConfig(cfg Config) Option {
	return func(a *Agent) { a.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// New creates an agent. The summarizer is typically an LLM-backed one on a
// cheap model tier; tests pass stubs.
func New(
	provider llm.Provider,
	store turnstore.Store,
	toolRegistry *tools.Registry,
	summarizer summarize.Summarizer,
	opts ...Option,
) *Agent {
	a := &Agent{
		provider: provider,
		store:    store,
		tools:    toolRegistry,
		config:   DefaultConfig(),
		logger:   slog.Default(),
		locks:    make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.assembler = contextwindow.New(
		store,
		summarizer,
		tokens.NewCounter(),
		contextwindow.Config{
			Budget:         a.config.Budget,
			MinRecentTurns: a.config.MinRecentTurns,
		},
		a.logger,
	)

	return a
}

// Chat handles one user turn end to end: append the user turn, assemble the
// window, run the loop, persist the reply. Events stream to sink as the turn
// progresses; sink may be nil for blocking callers.
func (a *Agent) Chat(ctx context.Context, req ChatRequest, sink Sink) (*ChatResponse, error) {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = types.NewConversationID()
	}

	unlock := a.lockConversation(conversationID)
	defer unlock()

	if _, err := a.store.Append(ctx, conversationID, types.RoleUser, req.Message); err != nil {
		return nil, fmt.Errorf("appending user turn: %w", err)
	}

	win, err := a.assembler.Assemble(ctx, conversationID, a.systemPrompt(), a.tools.CatalogText())
	if err != nil {
		return nil, fmt.Errorf("assembling context: %w", err)
	}

	scope := tools.Scope{
		UserID:         req.UserID,
		ConversationID: conversationID,
		RequestID:      uuid.NewString(),
	}

	result := a.runLoop(ctx, win, scope, sink)

	if result.state == StateAborted {
		a.logger.Warn("agent loop aborted",
			"conversation", conversationID,
			"iterations", result.iterations,
			"cause", result.cause,
		)
	}

	if _, err := a.store.Append(ctx, conversationID, types.RoleAssistant, result.reply); err != nil {
		return nil, fmt.Errorf("appending assistant turn: %w", err)
	}

	emit(sink, Event{Kind: EventDone, ConversationID: conversationID})

	return &ChatResponse{
		ConversationID: conversationID,
		Reply:          result.reply,
		State:          result.state,
		ProductRefs:    productref.Decode(result.reply),
		ToolCalls:      result.toolCalls,
	}, nil
}

// Conversation returns the persisted turns of a conversation.
func (a *Agent) Conversation(ctx context.Context, id string) ([]types.Turn, error) {
	return a.store.Load(ctx, id)
}

func (a *Agent) lockConversation(id string) func() {
	a.locksMu.Lock()
	mu, ok := a.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		a.locks[id] = mu
	}
	a.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (a *Agent) systemPrompt() string {
	prompt := a.config.BasePrompt
	if prompt == "" {
		prompt = basePrompt
	}

	fragment := removalAskFragment
	if a.config.RemovalPolicy == RemovalAuto {
		fragment = removalAutoFragment
	}

	return prompt + "\n- " + fragment
}

// composeSystem folds the summary block into the system text sent to the
// provider; the window's token accounting already covers both.
func composeSystem(system, summary string) string {
	if summary == "" {
		return system
	}
	return system + "\n\n## Summary of earlier conversation\n" + summary
}

func toMessages(turns []types.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case types.RoleUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.Content})
		case types.RoleAssistant:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: t.Content})
		case types.RoleTool:
			// Persisted tool output replayed as plain context.
			msgs = append(msgs, llm.Message{
				Role:    llm.RoleUser,
				Content: "Tool output:\n" + t.Content,
			})
		}
	}

	// Providers require the sequence to end on a user message.
	if len(msgs) > 0 && msgs[len(msgs)-1].Role != llm.RoleUser {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: "(continue)"})
	}

	return msgs
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.ToValidUTF8(s[:max], "") + "..."
}
