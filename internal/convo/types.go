package convo

import "time"

// Role tags who authored a message. The store accepts any value; only
// RoleUser and RoleAssistant are understood by the context builder.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one stored turn of a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatTurn is a role-tagged turn ready to be submitted to a completion API.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Stats is a point-in-time view of the store for monitoring.
type Stats struct {
	TotalUsers          int    `json:"total_users"`
	TotalMessages       int    `json:"total_messages"`
	ActiveConversations int    `json:"active_conversations"`
	MemoryUsage         string `json:"memory_usage"`
}

type EvictReason string

const (
	EvictLazy    EvictReason = "lazy"
	EvictSweep   EvictReason = "sweep"
	EvictCleared EvictReason = "cleared"
)

type record struct {
	messages     []Message
	lastActiveAt time.Time
	displayName  string
}
