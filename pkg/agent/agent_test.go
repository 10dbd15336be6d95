package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/trailpost/shopagent/pkg/agent/llm"
	"github.com/trailpost/shopagent/pkg/agent/tools"
	"github.com/trailpost/shopagent/pkg/agent/types"
)

func TestChat(t *testing.T) {
	ctx := context.Background()

	searchTool := &tools.Tool{
		Name:        "search_products",
		Description: "Search the catalog",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
			"required": []string{"query"},
		},
		ReturnsProducts: true,
		Handler: func(ctx context.Context, scope tools.Scope, input map[string]any) (string, error) {
			return "[ID:7] UltraLight 20F Sleeping Bag — $149.99\nIn stock.", nil
		},
	}

	t.Run("tagged reply decodes into product refs", func(t *testing.T) {
		registry := tools.NewRegistry()
		registry.Register(searchTool)

		provider := &scriptedProvider{responses: []*llm.Response{
			toolUse(llm.ToolCall{ID: "t1", Name: "search_products", Input: map[string]any{"query": "sleeping bag"}}),
			finalReply("I found [ID:7] UltraLight 20F Sleeping Bag — $149.99, a solid pick."),
		}}

		a := newTestAgent(t, provider, registry, DefaultConfig())
		resp, err := a.Chat(ctx, ChatRequest{UserID: "u1", Message: "need a sleeping bag"}, nil)
		if err != nil {
			t.Fatalf("chat: %v", err)
		}

		if len(resp.ProductRefs) != 1 {
			t.Fatalf("expected 1 product ref, got %d", len(resp.ProductRefs))
		}
		ref := resp.ProductRefs[0]
		if ref.ID != 7 || ref.Name != "UltraLight 20F Sleeping Bag" || ref.Price != 149.99 {
			t.Errorf("bad decode: %+v", ref)
		}
	})

	t.Run("turns are persisted in order", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*llm.Response{finalReply("Hello! What gear are you after?")}}
		a := newTestAgent(t, provider, tools.NewRegistry(), DefaultConfig())

		resp, err := a.Chat(ctx, ChatRequest{UserID: "u1", Message: "hi"}, nil)
		if err != nil {
			t.Fatalf("chat: %v", err)
		}
		if resp.ConversationID == "" {
			t.Fatal("expected a minted conversation ID")
		}

		turns, err := a.Conversation(ctx, resp.ConversationID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(turns) != 2 {
			t.Fatalf("expected 2 turns, got %d", len(turns))
		}
		if turns[0].Role != types.RoleUser || turns[0].Seq != 1 {
			t.Errorf("bad user turn: %+v", turns[0])
		}
		if turns[1].Role != types.RoleAssistant || turns[1].Seq != 2 {
			t.Errorf("bad assistant turn: %+v", turns[1])
		}

		// Follow-up reuses the conversation and keeps the sequence going.
		if _, err := a.Chat(ctx, ChatRequest{ConversationID: resp.ConversationID, UserID: "u1", Message: "thanks"}, nil); err != nil {
			t.Fatalf("second chat: %v", err)
		}
		turns, _ = a.Conversation(ctx, resp.ConversationID)
		if len(turns) != 4 || turns[3].Seq != 4 {
			t.Errorf("expected 4 turns ending at seq 4, got %d", len(turns))
		}
	})

	t.Run("chunk events reassemble into the reply", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*llm.Response{finalReply("Happy trails!")}}
		a := newTestAgent(t, provider, tools.NewRegistry(), DefaultConfig())

		var chunks strings.Builder
		var done []Event
		resp, err := a.Chat(ctx, ChatRequest{UserID: "u1", Message: "bye"}, func(ev Event) {
			switch ev.Kind {
			case EventChunk:
				chunks.WriteString(ev.Message)
			case EventDone:
				done = append(done, ev)
			}
		})
		if err != nil {
			t.Fatalf("chat: %v", err)
		}

		if chunks.String() != resp.Reply {
			t.Errorf("chunks %q do not reassemble into reply %q", chunks.String(), resp.Reply)
		}
		if len(done) != 1 || done[0].ConversationID != resp.ConversationID {
			t.Errorf("done event missing or missing conversation ID: %+v", done)
		}
	})

	t.Run("removal policy shapes the system prompt", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*llm.Response{finalReply("ok")}}
		a := newTestAgent(t, provider, tools.NewRegistry(), DefaultConfig().WithRemovalPolicy(RemovalAuto))

		if _, err := a.Chat(ctx, ChatRequest{UserID: "u1", Message: "hi"}, nil); err != nil {
			t.Fatalf("chat: %v", err)
		}

		system := provider.requests[0].System
		if !strings.Contains(system, "without asking") {
			t.Errorf("auto removal fragment missing from system prompt: %q", system)
		}
	})
}
