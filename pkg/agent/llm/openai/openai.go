// Package openai provides an OpenAI LLM provider implementation.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	oai "github.com/sashabaranov/go-openai"
	"github.com/trailpost/shopagent/pkg/agent/llm"
)

// Provider implements llm.Provider for OpenAI's chat completion API.
type Provider struct {
	client *oai.Client
}

// New creates a provider around an existing go-openai client.
func New(client *oai.Client) *Provider {
	return &Provider{client: client}
}

// NewFromEnv creates a provider using the OPENAI_API_KEY environment variable.
func NewFromEnv() *Provider {
	return New(oai.NewClient(os.Getenv("OPENAI_API_KEY")))
}

// Chat sends a chat completion request and returns the response.
func (p *Provider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	choice := resp.Choices[0]
	result := &llm.Response{
		Content:    choice.Message.Content,
		StopReason: mapFinishReason(choice.FinishReason),
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	result.ToolCalls = fromOpenAIToolCalls(choice.Message.ToolCalls)

	return result, nil
}

// ChatStream sends a streaming chat completion request, forwarding text
// deltas to onDelta and returning the accumulated response.
func (p *Provider) ChatStream(ctx context.Context, req llm.Request, onDelta func(text string)) (*llm.Response, error) {
	oaiReq := buildRequest(req)
	oaiReq.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, oaiReq)
	if err != nil {
		return nil, fmt.Errorf("openai stream failed: %w", err)
	}
	defer stream.Close()

	var content string
	var finish oai.FinishReason
	var calls []oai.ToolCall

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream recv failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		if choice.FinishReason != "" {
			finish = choice.FinishReason
		}
		if choice.Delta.Content != "" {
			content += choice.Delta.Content
			if onDelta != nil {
				onDelta(choice.Delta.Content)
			}
		}
		calls = accumulateToolCalls(calls, choice.Delta.ToolCalls)
	}

	return &llm.Response{
		Content:    content,
		ToolCalls:  fromOpenAIToolCalls(calls),
		StopReason: mapFinishReason(finish),
	}, nil
}

func buildRequest(req llm.Request) oai.ChatCompletionRequest {
	messages := make([]oai.ChatCompletionMessage, 0, len(req.Messages)+1)

	if req.System != "" {
		messages = append(messages, oai.ChatCompletionMessage{
			Role:    oai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleUser:
			messages = append(messages, oai.ChatCompletionMessage{
				Role:    oai.ChatMessageRoleUser,
				Content: msg.Content,
			})

		case llm.RoleAssistant:
			oaiMsg := oai.ChatCompletionMessage{
				Role:    oai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				args, _ := json.Marshal(tc.Input)
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, oai.ToolCall{
					ID:   tc.ID,
					Type: oai.ToolTypeFunction,
					Function: oai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			messages = append(messages, oaiMsg)

		case llm.RoleTool:
			if msg.ToolResult != nil {
				messages = append(messages, oai.ChatCompletionMessage{
					Role:       oai.ChatMessageRoleTool,
					Content:    msg.ToolResult.Content,
					ToolCallID: msg.ToolResult.ToolCallID,
				})
			}
		}
	}

	oaiReq := oai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}

	if len(req.Tools) > 0 {
		oaiTools := make([]oai.Tool, 0, len(req.Tools))
		for _, def := range req.Tools {
			oaiTools = append(oaiTools, oai.Tool{
				Type: oai.ToolTypeFunction,
				Function: &oai.FunctionDefinition{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  def.Parameters,
				},
			})
		}
		oaiReq.Tools = oaiTools
	}

	return oaiReq
}

// accumulateToolCalls merges streamed tool-call deltas. OpenAI streams the
// function arguments as string fragments keyed by index.
func accumulateToolCalls(calls []oai.ToolCall, deltas []oai.ToolCall) []oai.ToolCall {
	for _, d := range deltas {
		idx := len(calls)
		if d.Index != nil {
			idx = *d.Index
		}
		for len(calls) <= idx {
			calls = append(calls, oai.ToolCall{Type: oai.ToolTypeFunction})
		}
		if d.ID != "" {
			calls[idx].ID = d.ID
		}
		if d.Function.Name != "" {
			calls[idx].Function.Name = d.Function.Name
		}
		calls[idx].Function.Arguments += d.Function.Arguments
	}
	return calls
}

func fromOpenAIToolCalls(calls []oai.ToolCall) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}

	result := make([]llm.ToolCall, 0, len(calls))
	for _, tc := range calls {
		input := make(map[string]any)
		if tc.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
		}
		result = append(result, llm.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	return result
}

func mapFinishReason(reason oai.FinishReason) llm.StopReason {
	switch reason {
	case oai.FinishReasonToolCalls, oai.FinishReasonFunctionCall:
		return llm.StopReasonToolUse
	case oai.FinishReasonLength:
		return llm.StopReasonLength
	default:
		return llm.StopReasonEnd
	}
}
