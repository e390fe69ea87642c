package models

import "fmt"

// Role identifies who authored a conversation message. Only the three
// values below are accepted at the API boundary.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one turn of a conversation. Messages are validated once on
// the way in and treated as immutable afterwards.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid role %q", string(m.Role))
	}
	if m.Content == "" {
		return fmt.Errorf("empty message content")
	}
	return nil
}

// LatestUserContent returns the content of the last user message, or ""
// when the conversation holds none.
func LatestUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
