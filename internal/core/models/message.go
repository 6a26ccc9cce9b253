package models

import "encoding/json"

// MessageType represents the type of JSONL entry
type MessageType string

const (
	MessageTypeSummary             MessageType = "summary"
	MessageTypeUser                MessageType = "user"
	MessageTypeAssistant           MessageType = "assistant"
	MessageTypeSystem              MessageType = "system"
	MessageTypeFileHistorySnapshot MessageType = "file-history-snapshot"
)

// SessionEntry is one raw line of a session log
type SessionEntry struct {
	Type      string          `json:"type"`
	Message   json.RawMessage `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// IsConversational reports whether the entry is a user or assistant turn
func (e SessionEntry) IsConversational() bool {
	return e.Type == string(MessageTypeUser) || e.Type == string(MessageTypeAssistant)
}

// ContentItem is one element of a typed message content array
type ContentItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// MessageBody is the nested "message" payload of a user or assistant entry.
// Content is either a JSON string or an array of ContentItem.
type MessageBody struct {
	Role    string          `json:"role"`
	Model   string          `json:"model,omitempty"`
	Content json.RawMessage `json:"content"`
}
