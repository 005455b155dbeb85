// Package history is the durable persistence collaborator: append-only
// records of queued and answered chats, used both as audit trail and as the
// source of truth for windowed quota counts.
package history

import (
	"context"
	"time"
)

// Table selects which append-only table a windowed count runs against.
type Table string

const (
	TableQueues   Table = "chat_queues"
	TableMessages Table = "chat_messages"
)

// QueueRow marks a request as started. Inserted before the completion call.
type QueueRow struct {
	UserID    string
	Server    string
	GuildID   string
	Asked     string
	StartedAt time.Time
}

// MessageRow is the full audit record of one answered chat.
type MessageRow struct {
	UserID      string
	Server      string
	GuildID     string
	RequestID   string
	ConvoID     string
	Asked       string
	RawResponse string
	Response    string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Store is the narrow interface the quota gate and orchestrator depend on.
// Rows are never updated or deleted by this service.
type Store interface {
	CountSince(ctx context.Context, userID, server string, since time.Time, table Table) (int, error)
	InsertQueue(ctx context.Context, row QueueRow) error
	InsertMessage(ctx context.Context, row MessageRow) error
	Close() error
}
