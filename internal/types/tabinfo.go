package types

// TabInfo holds metadata about an attached browser tab.
type TabInfo struct {
	TargetID    string `json:"target_id"`
	URL         string `json:"url"`
	PathSegment string `json:"path_segment"` // e.g. "conversations_chat" for https://host/conversations/chat
	BrowserID   string `json:"browser_id"`   // first 8 chars of the target ID
}

// TabInfoProvider looks up tab information by target ID. It lets the capture
// package route archives without importing cdp.
type TabInfoProvider interface {
	GetByStringID(tabID string) (*TabInfo, bool)
}
