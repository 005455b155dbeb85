package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCountSinceWindows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	rows := []QueueRow{
		{UserID: "u1", Server: "DISCORD", StartedAt: now.Add(-30 * time.Second), Asked: "recent"},
		{UserID: "u1", Server: "DISCORD", StartedAt: now.Add(-10 * time.Minute), Asked: "old"},
		{UserID: "u2", Server: "DISCORD", StartedAt: now.Add(-5 * time.Second), Asked: "other user"},
		{UserID: "u1", Server: "TELEGRAM", StartedAt: now.Add(-5 * time.Second), Asked: "other server"},
	}
	for _, r := range rows {
		if err := s.InsertQueue(ctx, r); err != nil {
			t.Fatalf("InsertQueue() error = %v", err)
		}
	}

	n, err := s.CountSince(ctx, "u1", "DISCORD", now.Add(-time.Minute), TableQueues)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("minute window count = %d, want 1", n)
	}

	n, err = s.CountSince(ctx, "u1", "DISCORD", now.Add(-time.Hour), TableQueues)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("hour window count = %d, want 2", n)
	}
}

func TestCountSinceMessagesTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	msg := MessageRow{
		UserID:      "u1",
		Server:      "DISCORD",
		GuildID:     "g1",
		RequestID:   "chatcmpl-123",
		ConvoID:     "u1",
		Asked:       "hello",
		RawResponse: "data: ...",
		Response:    "hi there",
		StartedAt:   now.Add(-2 * time.Second),
		FinishedAt:  now,
	}
	if err := s.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("InsertMessage() error = %v", err)
	}

	// Queue rows must not bleed into the messages count.
	if err := s.InsertQueue(ctx, QueueRow{UserID: "u1", Server: "DISCORD", StartedAt: now}); err != nil {
		t.Fatal(err)
	}

	n, err := s.CountSince(ctx, "u1", "DISCORD", now.Add(-time.Minute), TableMessages)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("messages count = %d, want 1", n)
	}
}

func TestCountSinceUnknownTable(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.CountSince(context.Background(), "u1", "DISCORD", time.Now(), Table("nope")); err == nil {
		t.Error("CountSince() with unknown table should fail")
	}
}

func TestInsertMessageDuration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Now().Add(-3 * time.Second)
	finished := time.Now()

	err := s.InsertMessage(ctx, MessageRow{
		UserID: "u1", Server: "DISCORD", ConvoID: "u1",
		StartedAt: started, FinishedAt: finished,
	})
	if err != nil {
		t.Fatal(err)
	}

	var duration int64
	if err := s.db.QueryRow(`SELECT duration FROM chat_messages WHERE user_id = 'u1'`).Scan(&duration); err != nil {
		t.Fatal(err)
	}
	if duration < 0 {
		t.Errorf("duration = %d, want >= 0", duration)
	}
}
