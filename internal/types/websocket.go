package types

import "time"

// WebSocketCapture is one archived WebSocket event. The framedecode tool reads
// these records back for offline decoding.
type WebSocketCapture struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
	TabID        string    `json:"tab_id"`
	Tap          string    `json:"tap,omitempty"`
	URL          string    `json:"url"`
	EventType    string    `json:"event_type"`
	Direction    string    `json:"direction,omitempty"`
	Opcode       int       `json:"opcode,omitempty"`
	PayloadData  string    `json:"payload_data,omitempty"`
	Truncated    bool      `json:"truncated,omitempty"`
	OriginalSize int       `json:"original_size,omitempty"`
	SHA256       string    `json:"sha256,omitempty"`
	Emitted      int       `json:"emitted,omitempty"`
}

// WebSocketConnection tracks a tapped WebSocket connection.
type WebSocketConnection struct {
	RequestID   string
	URL         string
	TabID       string
	Tap         string
	PathSegment string
	BrowserID   string
	CreatedAt   time.Time
}
