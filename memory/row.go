package memory

import (
	"context"
	"strings"
	"time"
)

// Direction says who authored a row.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// ToolCall is a tool invocation recorded on an outgoing row.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Row is one stored message.
type Row struct {
	ID              string     `json:"id"`
	ConversationKey string     `json:"conversationKey"`
	Direction       Direction  `json:"direction"`
	Content         string     `json:"content"`
	ToolCalls       []ToolCall `json:"toolCalls,omitempty"`
	ToolResultFor   string     `json:"toolResultFor,omitempty"`
	IsError         bool       `json:"isError,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Blank reports whether r has no content and no tool data.
func (r Row) Blank() bool {
	return strings.TrimSpace(r.Content) == "" && len(r.ToolCalls) == 0 && r.ToolResultFor == ""
}

// Store is the message log collaborator.
type Store interface {
	// GetRows returns at most limit of the newest rows for key, oldest first.
	// A limit <= 0 returns every row.
	GetRows(ctx context.Context, key string, limit int) ([]Row, error)
	Append(ctx context.Context, rows ...Row) error
}
