package constant

const (
	// StreamDoneMarker is the last data frame of a successful streamed answer.
	StreamDoneMarker = "[DONE]"
	// StreamErrorPrefix starts the websocket frame sent when a stream fails.
	StreamErrorPrefix = "[ERROR]"

	DefaultRetrievalK = 4
)

const (
	EventTypeDocumentIngested = "DOCUMENT_INGESTED"
	EventTypeSessionCleared   = "SESSION_CLEARED"
)

// Log module tags
const (
	LogModuleIngest = "INGEST"
	LogModuleChat   = "CHAT"
	LogModuleIndex  = "INDEX"
	LogModuleEvents = "EVENTS"
	LogModuleHTTP   = "HTTP"
)
