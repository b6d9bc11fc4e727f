package entity

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type StreamEventType string

const (
	StreamEventToken StreamEventType = "token"
	StreamEventDone  StreamEventType = "done"
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one element of a streamed answer. A done or error event is
// always the last value sent before the channel closes.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Err     error
}
