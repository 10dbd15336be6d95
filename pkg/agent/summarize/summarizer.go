// Package summarize compresses spans of older turns into a short digest.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/trailpost/shopagent/pkg/agent/llm"
	"github.com/trailpost/shopagent/pkg/agent/types"
)

// Summarizer compresses a span of turns, folding in the previous digest so
// the result always covers everything older than the current cutoff.
type Summarizer interface {
	Summarize(ctx context.Context, previous string, turns []types.Turn) (string, error)
}

const instructions = "Summarize this shopping conversation in 2-3 sentences. " +
	"Focus on: what products were discussed, user preferences, " +
	"and any items added to cart. Be specific about product names and prices. " +
	"If a summary of even earlier conversation is provided, fold it in so " +
	"nothing already summarized is lost."

// LLM is a Summarizer backed by a cheap reasoning-engine call.
type LLM struct {
	provider  llm.Provider
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewLLM creates an LLM summarizer. The model should be a cheap tier; the
// digest is regenerated every time the recent-window cutoff advances.
func NewLLM(provider llm.Provider, model string, timeout time.Duration) *LLM {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLM{
		provider:  provider,
		model:     model,
		maxTokens: 512,
		timeout:   timeout,
	}
}

func (s *LLM) Summarize(ctx context.Context, previous string, turns []types.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.provider.Chat(ctx, llm.Request{
		Model:     s.model,
		System:    instructions,
		MaxTokens: s.maxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: transcript(previous, turns)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarizing %d turns: %w", len(turns), err)
	}

	return strings.TrimSpace(resp.Content), nil
}

func transcript(previous string, turns []types.Turn) string {
	var b strings.Builder

	if previous != "" {
		b.WriteString("Summary of even earlier conversation:\n")
		b.WriteString(previous)
		b.WriteString("\n\n")
	}

	for _, t := range turns {
		label := "User"
		switch t.Role {
		case types.RoleAssistant:
			label = "Assistant"
		case types.RoleTool:
			label = "Tool"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, t.Content)
	}

	return b.String()
}
