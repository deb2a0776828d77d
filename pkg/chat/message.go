// Package chat defines the message and turn types shared by the agent
// pipeline, the conversation store, and both transport layers.
package chat

// Role identifies the author of a message. It is fixed at construction
// time; nothing downstream infers a role from content or runtime type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversational message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system-role message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user-role message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant-role message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
