// Package chat keeps conversation history and turns model replies into safe
// HTML.
package chat

import (
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// History is an ordered conversation. The zero value is empty and ready.
// Synchronization is left to the owner.
type History struct {
	msgs []Message
}

// Append records a message stamped with the current time.
func (h *History) Append(role Role, content string) Message {
	m := Message{Role: role, Content: content, At: time.Now()}
	h.msgs = append(h.msgs, m)
	return m
}

// Messages returns a copy of the conversation.
func (h *History) Messages() []Message {
	return append([]Message(nil), h.msgs...)
}

// Len is the number of messages.
func (h *History) Len() int { return len(h.msgs) }

// Restore replaces the conversation with msgs, keeping their timestamps.
func (h *History) Restore(msgs []Message) {
	h.msgs = append([]Message(nil), msgs...)
}

// Clear drops every message.
func (h *History) Clear() { h.msgs = nil }

// Transcript renders messages as "ROLE: content" joined by spaces.
func Transcript(msgs []Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, strings.ToUpper(string(m.Role))+": "+m.Content)
	}
	return strings.Join(parts, " ")
}
