package agent

// EventKind labels a progress event emitted while a turn is being handled.
type EventKind string

const (
	// EventStatus reports tool activity (label before, outcome after).
	EventStatus EventKind = "status"
	// EventMutation reports a committed cart change.
	EventMutation EventKind = "mutation"
	// EventChunk carries a partial text fragment of the reply.
	EventChunk EventKind = "chunk"
	// EventDone closes the turn and carries the conversation ID to use on
	// the next call.
	EventDone EventKind = "done"
)

// Event is a progress notification pushed to the transport while the agent
// works on a turn.
type Event struct {
	Kind           EventKind `json:"kind"`
	Tool           string    `json:"tool,omitempty"`
	Message        string    `json:"message,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
}

// Sink receives events in emission order. A nil Sink discards everything.
type Sink func(Event)

func emit(sink Sink, ev Event) {
	if sink != nil {
		sink(ev)
	}
}
