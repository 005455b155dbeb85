// Package quota gates expensive completion calls behind an in-flight mark
// and three independent trailing-window thresholds.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaybots/chatrelay/internal/history"
)

// ErrInFlight is returned while an earlier request from the same user is
// still outstanding (or finished less than a minute ago).
var ErrInFlight = errors.New("request already in flight")

// Window names the quota window that rejected a request.
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
	WindowDay    Window = "day"
)

// LimitError reports which window a user exhausted.
type LimitError struct {
	Window Window
	Max    int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("quota exceeded: %d per %s", e.Max, e.Window)
}

// Limits are the per-user thresholds for each trailing window.
type Limits struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

// Gate evaluates a user's recent activity before a completion call is made.
type Gate struct {
	store  history.Store
	cache  Cache
	limits Limits
}

func NewGate(store history.Store, cache Cache, limits Limits) *Gate {
	return &Gate{store: store, cache: cache, limits: limits}
}

// CheckAndReserve runs the quota checks in order and, when all pass, durably
// inserts a queue row and sets the in-flight mark. Order matters: the
// in-memory mark is checked first so an obviously-too-soon repeat never costs
// a store round trip. The three windows are independent thresholds and each
// gets evaluated against its own count; minute reads the queue table (it must
// see requests that are still unanswered), day and hour read answered chats.
//
// Check and mark are not one atomic step: two requests from the same user
// arriving in the same instant can both pass Live before either Marks. That
// race is accepted — the mark guards against rapid resubmission, not against
// adversarial concurrency, and both requests still land in the queue table
// where the minute window counts them.
func (g *Gate) CheckAndReserve(ctx context.Context, userID, server, guildID, asked string) error {
	live, err := g.cache.Live(ctx, userID, server)
	if err != nil {
		return fmt.Errorf("checking in-flight mark: %w", err)
	}
	if live {
		return ErrInFlight
	}

	now := time.Now()

	n, err := g.store.CountSince(ctx, userID, server, now.Add(-time.Minute), history.TableQueues)
	if err != nil {
		return fmt.Errorf("counting minute window: %w", err)
	}
	if n >= g.limits.PerMinute {
		return &LimitError{Window: WindowMinute, Max: g.limits.PerMinute}
	}

	n, err = g.store.CountSince(ctx, userID, server, now.Add(-24*time.Hour), history.TableMessages)
	if err != nil {
		return fmt.Errorf("counting day window: %w", err)
	}
	if n >= g.limits.PerDay {
		return &LimitError{Window: WindowDay, Max: g.limits.PerDay}
	}

	n, err = g.store.CountSince(ctx, userID, server, now.Add(-time.Hour), history.TableMessages)
	if err != nil {
		return fmt.Errorf("counting hour window: %w", err)
	}
	if n >= g.limits.PerHour {
		return &LimitError{Window: WindowHour, Max: g.limits.PerHour}
	}

	err = g.store.InsertQueue(ctx, history.QueueRow{
		UserID:    userID,
		Server:    server,
		GuildID:   guildID,
		Asked:     asked,
		StartedAt: now,
	})
	if err != nil {
		return fmt.Errorf("inserting queue row: %w", err)
	}

	if err := g.cache.Mark(ctx, userID, server); err != nil {
		return fmt.Errorf("setting in-flight mark: %w", err)
	}
	return nil
}

// Release clears the in-flight mark once the request fully completes or
// fails after being counted. Safe to call even if the mark already expired.
func (g *Gate) Release(ctx context.Context, userID, server string) error {
	return g.cache.Clear(ctx, userID, server)
}
