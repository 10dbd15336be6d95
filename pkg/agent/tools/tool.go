package tools

import "context"

// Tool defines a capability the agent can use.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
	Handler     Handler        `json:"-"`

	// Mutating marks tools that change shared state (cart add/remove).
	// Mutating tools are never retried on timeout and emit a mutation
	// event on success so the transport can notify the UI out-of-band.
	Mutating bool `json:"-"`

	// ReturnsProducts marks tools whose output must carry product
	// reference tags. Missing tags are logged as a contract violation.
	ReturnsProducts bool `json:"-"`
}

// Scope carries the per-request identity a tool handler needs. It is passed
// explicitly through the dispatch chain; nothing is stashed in ambient
// globals.
type Scope struct {
	UserID         string
	ConversationID string
	RequestID      string
}

// Handler executes a tool and returns the textual result fed back to the
// reasoning engine.
type Handler func(ctx context.Context, scope Scope, input map[string]any) (string, error)

// Definition returns the tool definition without the handler (for the LLM).
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToDefinition converts a Tool to a Definition.
func (t *Tool) ToDefinition() Definition {
	return Definition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}
