// Package transcript turns raw session log entries into structured messages
// for display.
package transcript

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/neilberkman/ccdash/internal/core/models"
)

// Role is the speaker of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const unknownTool = "Unknown Tool"

// Message is one displayed turn
type Message struct {
	Role      Role
	Blocks    []Block
	Timestamp string
}

// Text joins the message's text blocks
func (m Message) Text() string {
	var parts []string
	for _, b := range m.Blocks {
		if t, ok := b.(TextBlock); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ParseMessages builds display messages from user and assistant entries, in
// source order. Malformed or unknown content items are dropped. Messages
// with no blocks, and user messages made only of tool results, are omitted.
func ParseMessages(entries []models.SessionEntry) []Message {
	messages := make([]Message, 0, len(entries))

	for _, e := range entries {
		var role Role
		switch e.Type {
		case string(models.MessageTypeUser):
			role = RoleUser
		case string(models.MessageTypeAssistant):
			role = RoleAssistant
		default:
			continue
		}

		blocks := parseContent(e.Message)
		if len(blocks) == 0 {
			continue
		}
		if role == RoleUser && onlyToolResults(blocks) {
			continue
		}

		messages = append(messages, Message{
			Role:      role,
			Blocks:    blocks,
			Timestamp: e.Timestamp,
		})
	}

	return messages
}

func onlyToolResults(blocks []Block) bool {
	for _, b := range blocks {
		if _, ok := b.(ToolResultBlock); !ok {
			return false
		}
	}
	return true
}

func parseContent(message json.RawMessage) []Block {
	if len(message) == 0 {
		return nil
	}

	var body models.MessageBody
	if err := json.Unmarshal(message, &body); err != nil || len(body.Content) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(body.Content, &s); err == nil {
		if isBlank(s) {
			return nil
		}
		return []Block{TextBlock{Text: s}}
	}

	// decode items one by one so a single odd item doesn't sink the message
	var raw []json.RawMessage
	if err := json.Unmarshal(body.Content, &raw); err != nil {
		return nil
	}

	blocks := make([]Block, 0, len(raw))
	for _, r := range raw {
		var item models.ContentItem
		if err := json.Unmarshal(r, &item); err != nil {
			continue
		}
		if b, ok := parseItem(item); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func parseItem(item models.ContentItem) (Block, bool) {
	switch item.Type {
	case "text":
		if isBlank(item.Text) {
			return nil, false
		}
		return TextBlock{Text: item.Text}, true

	case "tool_use":
		name := item.Name
		if name == "" {
			name = unknownTool
		}
		return ToolUseBlock{ID: item.ID, Name: name, Input: renderInput(item.Input)}, true

	case "thinking":
		text := item.Thinking
		if text == "" {
			text = item.Text
		}
		if isBlank(text) {
			return nil, false
		}
		return ThinkingBlock{Text: text}, true

	case "tool_result":
		out := resultText(item.Content)
		if isBlank(out) {
			return nil, false
		}
		return ToolResultBlock{ToolUseID: item.ToolUseID, Output: out, IsError: item.IsError}, true
	}

	return nil, false
}

// renderInput pretty-prints tool parameters with two-space indentation
func renderInput(input json.RawMessage) string {
	if len(bytes.TrimSpace(input)) == 0 || string(bytes.TrimSpace(input)) == "null" {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, input, "", "  "); err != nil {
		return string(input)
	}
	return buf.String()
}

// resultText flattens tool_result content: a string, or text items joined by
// newlines
func resultText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}

	var items []json.RawMessage
	if err := json.Unmarshal(content, &items); err != nil {
		return ""
	}

	var parts []string
	for _, r := range items {
		var item struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if json.Unmarshal(r, &item) != nil || item.Type != "text" {
			continue
		}
		parts = append(parts, item.Text)
	}
	return strings.Join(parts, "\n")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
