// Package convo holds the per-user rolling conversation state and the token
// accounting that keeps it inside a model's context budget.
package convo

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation. Order is chronological and
// meaningful; index 0 is always the system message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
