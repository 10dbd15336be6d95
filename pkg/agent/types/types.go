// Package types contains shared types with no internal dependencies.
package types

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one persisted message in a conversation. Turns are immutable once
// appended; the store assigns Seq, which is strictly increasing within a
// conversation with no gaps.
type Turn struct {
	ConversationID string    `json:"conversationId"`
	Seq            int64     `json:"seq"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewConversationID mints an opaque conversation identifier.
func NewConversationID() string {
	return uuid.NewString()
}
