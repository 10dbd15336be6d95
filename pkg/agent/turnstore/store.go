// Package turnstore persists the append-only dialogue log.
package turnstore

import (
	"context"
	"time"

	"github.com/trailpost/shopagent/pkg/agent/types"
)

// Store defines turn persistence. Append assigns the next sequence number
// for the conversation; turns are never mutated or deleted.
type Store interface {
	Append(ctx context.Context, conversationID string, role types.Role, content string) (types.Turn, error)
	Load(ctx context.Context, conversationID string) ([]types.Turn, error)

	// Summary returns the stored digest of turns older than the current
	// recent-window cutoff. A zero-value Summary means none exists yet.
	Summary(ctx context.Context, conversationID string) (Summary, error)
	SaveSummary(ctx context.Context, conversationID string, s Summary) error
}

// Summary is the single evolving digest per conversation. UpToSeq is the
// sequence number of the newest turn the digest covers; the assembler uses
// it to skip re-summarization when the cutoff has not moved.
type Summary struct {
	Text      string    `json:"text"`
	UpToSeq   int64     `json:"upToSeq"`
	UpdatedAt time.Time `json:"updatedAt"`
}
