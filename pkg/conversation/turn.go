package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role is the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Status is the lifecycle position of a turn.
type Status string

const (
	// StatusPending marks the assistant turn being streamed.
	StatusPending Status = "pending"

	// StatusComplete marks a turn that is final and whole.
	StatusComplete Status = "complete"

	// StatusIncomplete marks an assistant turn that was stopped, failed or
	// truncated. Its partial content is kept.
	StatusIncomplete Status = "incomplete"
)

// Turn is one message in a conversation.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	IsSelf    bool      `json:"is_self"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurn returns a complete turn with a fresh ID.
func NewTurn(role Role, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		IsSelf:    role == RoleUser,
		Status:    StatusComplete,
		CreatedAt: time.Now().UTC(),
	}
}

// Final reports whether the turn will no longer change.
func (t Turn) Final() bool {
	return t.Status != StatusPending
}
