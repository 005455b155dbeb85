// Package bot orchestrates one inbound message through quota gating,
// conversation state, the completion call, persistence and delivery.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relaybots/chatrelay/internal/convo"
	"github.com/relaybots/chatrelay/internal/discord"
	"github.com/relaybots/chatrelay/internal/history"
	"github.com/relaybots/chatrelay/internal/openai"
	"github.com/relaybots/chatrelay/internal/quota"
	"github.com/relaybots/chatrelay/internal/splitter"
)

// Sender delivers one reply chunk to a channel.
type Sender interface {
	SendText(channelID, content string) error
}

// Completer issues one completion request.
type Completer interface {
	Complete(ctx context.Context, messages []convo.Message, p openai.Params) (*openai.Result, error)
}

// Allower answers private-mode membership checks.
type Allower interface {
	Allowed(id string) (bool, error)
}

// Options carry the per-process chat settings.
type Options struct {
	// Server tags durable rows with the originating platform.
	Server       string
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	CharLimit    int
	Private      bool
	Workers      int
}

type Handler struct {
	sender Sender
	llm    Completer
	convos *convo.Store
	gate   *quota.Gate
	hist   history.Store
	allow  Allower
	opts   Options

	// slots bounds in-flight completion workers so the webhook path never
	// piles unbounded goroutines behind a slow model.
	slots chan struct{}
	wg    sync.WaitGroup
}

func NewHandler(sender Sender, llm Completer, convos *convo.Store, gate *quota.Gate, hist history.Store, allow Allower, opts Options) *Handler {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Handler{
		sender: sender,
		llm:    llm,
		convos: convos,
		gate:   gate,
		hist:   hist,
		allow:  allow,
		opts:   opts,
		slots:  make(chan struct{}, opts.Workers),
	}
}

// HandleMessage runs the synchronous part of the flow: allow-listing, quota
// gating and the acknowledgement notice. The completion itself is handed to
// a bounded worker so other users are not stalled behind the model call.
func (h *Handler) HandleMessage(msg discord.InboundMessage) {
	ctx := context.Background()

	if h.opts.Private {
		ok, err := h.allow.Allowed(msg.AuthorID)
		if err != nil {
			log.Printf("bot: allow list error for %s: %v", msg.AuthorID, err)
			return
		}
		if !ok {
			// Private mode ignores strangers silently.
			return
		}
	}

	if err := h.gate.CheckAndReserve(ctx, msg.AuthorID, h.opts.Server, msg.GuildID, msg.Content); err != nil {
		h.rejectQuota(msg, err)
		return
	}

	startedAt := time.Now()

	// Slash invocations are acknowledged by the platform itself; plain
	// mentions get an explicit notice that work has started.
	if !msg.IsSlash {
		h.notify(msg.ChannelID, fmt.Sprintf("<@%s>, checking ⏳\n> %s", msg.AuthorID, msg.Content))
	}

	h.wg.Add(1)
	h.slots <- struct{}{}
	go func() {
		defer h.wg.Done()
		defer func() { <-h.slots }()
		h.process(ctx, msg, startedAt)
	}()
}

// Wait blocks until every dispatched worker has finished. Used on shutdown.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) rejectQuota(msg discord.InboundMessage, err error) {
	mention := "<@" + msg.AuthorID + ">"

	var limitErr *quota.LimitError
	switch {
	case errors.Is(err, quota.ErrInFlight):
		h.notify(msg.ChannelID, mention+", 🔴 you have a request still in progress. Wait until it finishes!")
	case errors.As(err, &limitErr):
		switch limitErr.Window {
		case quota.WindowMinute:
			h.notify(msg.ChannelID, mention+", you have a lot of queries per last minute. Cool down!")
		case quota.WindowDay:
			h.notify(msg.ChannelID, mention+", you have a lot of queries per 24h. Do more tomorrow!")
		case quota.WindowHour:
			h.notify(msg.ChannelID, mention+", you have a lot of queries per last hour. Try again later!")
		}
	default:
		log.Printf("bot: quota check failed for %s: %v", msg.AuthorID, err)
		h.notifyFailure(msg)
	}
}

// process runs off the synchronous path: history update, completion,
// persistence, formatting and delivery. The in-flight mark is released as
// the terminal step of every path through here.
func (h *Handler) process(ctx context.Context, msg discord.InboundMessage, startedAt time.Time) {
	defer func() {
		if err := h.gate.Release(ctx, msg.AuthorID, h.opts.Server); err != nil {
			log.Printf("bot: releasing in-flight mark for %s: %v", msg.AuthorID, err)
		}
	}()

	// One conversation per user, created lazily on first contact.
	convoID := msg.AuthorID
	if !h.convos.Has(convoID) {
		h.convos.Reset(convoID, h.opts.SystemPrompt)
	}
	h.convos.Append(convoID, convo.RoleUser, msg.Content)

	if err := h.convos.Truncate(convoID, h.opts.Model, h.opts.MaxTokens); err != nil {
		log.Printf("bot: truncate failed for %s: %v", convoID, err)
		h.notifyFailure(msg)
		return
	}

	messages := h.convos.Get(convoID)
	budget, err := convo.RemainingBudget(messages, h.opts.Model, h.opts.MaxTokens)
	if err != nil || budget <= 0 {
		log.Printf("bot: no token budget left for %s (budget=%d): %v", convoID, budget, err)
		h.notifyFailure(msg)
		return
	}

	res, err := h.llm.Complete(ctx, messages, openai.Params{
		Model:       h.opts.Model,
		Temperature: h.opts.Temperature,
		MaxTokens:   budget,
		User:        "user",
	})
	if err != nil {
		log.Printf("bot: completion failed for %s: %v", convoID, err)
		h.notify(msg.ChannelID, fmt.Sprintf("<@%s>, error during fetching query. Try again later!", msg.AuthorID))
		return
	}
	finishedAt := time.Now()

	h.convos.Append(convoID, res.Role, res.Text)

	// Durability is best-effort: a failed audit write must not cost the
	// user their reply.
	err = h.hist.InsertMessage(ctx, history.MessageRow{
		UserID:      msg.AuthorID,
		Server:      h.opts.Server,
		GuildID:     msg.GuildID,
		RequestID:   res.RequestID,
		ConvoID:     convoID,
		Asked:       msg.Content,
		RawResponse: res.Raw,
		Response:    res.Text,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
	})
	if err != nil {
		log.Printf("bot: persisting chat for %s: %v", convoID, err)
	}

	reply := fmt.Sprintf("> **%s** - <@%s>\n\n%s", msg.Content, msg.AuthorID, res.Text)
	for _, chunk := range splitter.Split(reply, h.opts.CharLimit) {
		if err := h.sender.SendText(msg.ChannelID, chunk); err != nil {
			// Keep going; later chunks may still get through.
			log.Printf("bot: sending chunk to %s: %v", msg.ChannelID, err)
		}
	}
}

func (h *Handler) notifyFailure(msg discord.InboundMessage) {
	h.notify(msg.ChannelID, fmt.Sprintf("<@%s>, something went wrong. Try again later!", msg.AuthorID))
}

func (h *Handler) notify(channelID, text string) {
	if err := h.sender.SendText(channelID, text); err != nil {
		log.Printf("bot: failed to send notice to %s: %v", channelID, err)
	}
}
