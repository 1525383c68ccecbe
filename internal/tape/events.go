package tape

// EventType enumerates the TapeEvent sum type.
type EventType string

const (
	EventOrderPlaced    EventType = "order_placed"
	EventOrderCancelled EventType = "order_cancelled"
	EventTrade          EventType = "trade"
	EventBookSnapshot   EventType = "book_snapshot"
	EventNews           EventType = "news"
	EventAgentThought   EventType = "agent_thought"
)

// Record is the decoded shape of one persisted tape line: the five fields
// every event carries, plus its type-specific payload flattened into the
// same JSON object.
type Record struct {
	ID          string                 `json:"id"`
	SessionID   string                 `json:"sessionId"`
	Type        EventType              `json:"type"`
	TimestampMs int64                  `json:"timestamp"`
	Sequence    uint64                 `json:"sequence"`
	Payload     map[string]interface{} `json:"-"`
}
