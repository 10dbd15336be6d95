package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trailpost/shopagent/pkg/agent/contextwindow"
	"github.com/trailpost/shopagent/pkg/agent/llm"
	"github.com/trailpost/shopagent/pkg/agent/productref"
	"github.com/trailpost/shopagent/pkg/agent/tools"
)

// State is the agent loop state for one handled turn.
type State string

const (
	StateReasoning      State = "reasoning"
	StateExecutingTools State = "executing_tools"
	StateDone           State = "done"
	StateAborted        State = "aborted"
)

// fallbackReply is persisted as the assistant turn when the loop aborts.
// Raw provider or tool errors never reach the user.
const fallbackReply = "I wasn't able to complete your request in the allowed steps. Could you try rephrasing it?"

type loopResult struct {
	reply      string
	state      State
	iterations int
	toolCalls  []ToolCallRecord
	cause      string
}

// runLoop alternates reasoning calls and tool execution until the engine
// produces a terminal reply or the iteration ceiling is hit. Tool calls run
// strictly in the order requested; results are fed back in the same order.
func (a *Agent) runLoop(ctx context.Context, win *contextwindow.Window, scope tools.Scope, sink Sink) loopResult {
	messages := toMessages(win.Recent)
	system := composeSystem(win.System, win.Summary)
	defs := a.tools.Definitions()

	result := loopResult{state: StateReasoning}

	for turn := 0; turn < a.config.MaxTurns; turn++ {
		result.iterations = turn + 1
		result.state = StateReasoning

		resp, err := a.reason(ctx, system, messages, defs, sink)
		if err != nil {
			result.reply = fallbackReply
			result.state = StateAborted
			result.cause = err.Error()
			return result
		}

		if resp.StopReason != llm.StopReasonToolUse || len(resp.ToolCalls) == 0 {
			result.reply = resp.Content
			result.state = StateDone
			return result
		}

		result.state = StateExecutingTools
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			emit(sink, Event{Kind: EventStatus, Tool: tc.Name, Message: statusLabel(tc.Name)})

			output, err := a.executeTool(ctx, scope, tc)

			record := ToolCallRecord{Name: tc.Name, Input: tc.Input}
			var content string
			if err != nil {
				record.Error = err.Error()
				content = fmt.Sprintf("Error: %v", err)
				emit(sink, Event{Kind: EventStatus, Tool: tc.Name, Message: tc.Name + " failed"})
			} else {
				record.Output = output
				content = output
				emit(sink, Event{Kind: EventStatus, Tool: tc.Name, Message: tc.Name + " finished"})
				a.checkToolContract(scope.ConversationID, tc.Name, output)
				if tool, ok := a.tools.Get(tc.Name); ok && tool.Mutating {
					emit(sink, Event{Kind: EventMutation, Tool: tc.Name})
				}
			}
			result.toolCalls = append(result.toolCalls, record)

			messages = append(messages, llm.Message{
				Role: llm.RoleTool,
				ToolResult: &llm.ToolResult{
					ToolCallID: tc.ID,
					Content:    content,
					IsError:    err != nil,
				},
			})
		}
	}

	result.reply = fallbackReply
	result.state = StateAborted
	result.cause = "iteration ceiling reached"
	return result
}

// reason makes one streaming call to the reasoning engine, forwarding text
// deltas as chunk events.
func (a *Agent) reason(ctx context.Context, system string, messages []llm.Message, defs []tools.Definition, sink Sink) (*llm.Response, error) {
	rctx := ctx
	if a.config.ReasoningTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, a.config.ReasoningTimeout)
		defer cancel()
	}

	return a.provider.ChatStream(rctx, llm.Request{
		Model:       a.config.Model,
		System:      system,
		Messages:    messages,
		Tools:       defs,
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
	}, func(delta string) {
		emit(sink, Event{Kind: EventChunk, Message: delta})
	})
}

// executeTool runs one tool under its timeout. A timed-out read-only tool
// gets a single retry after a short backoff; mutating tools never retry, so
// a slow cart write cannot be applied twice.
func (a *Agent) executeTool(ctx context.Context, scope tools.Scope, tc llm.ToolCall) (string, error) {
	run := func() (string, error) {
		tctx := ctx
		if a.config.ToolTimeout > 0 {
			var cancel context.CancelFunc
			tctx, cancel = context.WithTimeout(ctx, a.config.ToolTimeout)
			defer cancel()
		}
		return a.tools.Execute(tctx, scope, tc.Name, tc.Input)
	}

	output, err := run()
	if err == nil || !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return output, err
	}

	tool, ok := a.tools.Get(tc.Name)
	if !ok || tool.Mutating {
		return output, err
	}

	a.logger.Warn("tool timed out, retrying", "tool", tc.Name, "conversation", scope.ConversationID)
	select {
	case <-time.After(a.config.RetryBackoff):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return run()
}

// checkToolContract warns when a product-surfacing tool returns text with no
// decodable product tags. The turn continues; the reply just loses cross-turn
// product tracking for those results.
func (a *Agent) checkToolContract(conversationID, name, output string) {
	tool, ok := a.tools.Get(name)
	if !ok || !tool.ReturnsProducts {
		return
	}
	if len(productref.Decode(output)) == 0 {
		a.logger.Warn("tool output carries no product tags",
			"tool", name,
			"conversation", conversationID,
			"output", truncateForLog(output, 200),
		)
	}
}

func statusLabel(tool string) string {
	switch tool {
	case "search_products":
		return "Searching products"
	case "get_product_details":
		return "Fetching product details"
	case "add_to_cart":
		return "Adding to cart"
	case "remove_from_cart":
		return "Removing from cart"
	case "clear_cart":
		return "Clearing cart"
	case "get_current_cart":
		return "Checking cart"
	case "compare_products":
		return "Comparing products"
	default:
		return "Running " + tool
	}
}
