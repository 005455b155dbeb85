package convo

import (
	"sync"
	"time"
)

// Store keeps one rolling conversation per user id, in memory only. A process
// restart loses all context; the durable audit trail lives elsewhere.
//
// The internal mutex only protects the map itself. Per-conversation mutation
// is serialized by the caller: the quota gate's in-flight mark keeps a second
// request for the same user out until the first one finishes.
type Store struct {
	defaultPrompt string

	mu    sync.Mutex
	convs map[string]*entry
}

type entry struct {
	messages []Message
	lastUsed time.Time
}

func NewStore(defaultPrompt string) *Store {
	return &Store{
		defaultPrompt: defaultPrompt,
		convs:         make(map[string]*entry),
	}
}

// Has reports whether a conversation exists for id.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.convs[id]
	return ok
}

// Reset replaces the conversation with a single system message. An empty
// prompt falls back to the store's default.
func (s *Store) Reset(id, systemPrompt string) {
	if systemPrompt == "" {
		systemPrompt = s.defaultPrompt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[id] = &entry{
		messages: []Message{{Role: RoleSystem, Content: systemPrompt}},
		lastUsed: time.Now(),
	}
}

// Append adds a message to the conversation. The conversation must exist;
// callers Reset unseen ids first.
func (s *Store) Append(id string, role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.convs[id]
	if !ok {
		e = &entry{messages: []Message{{Role: RoleSystem, Content: s.defaultPrompt}}}
		s.convs[id] = e
	}
	e.messages = append(e.messages, Message{Role: role, Content: content})
	e.lastUsed = time.Now()
}

// Truncate pops the oldest non-system message until the conversation fits the
// token budget or only the system message remains. The system message at
// index 0 is never evicted.
func (s *Store) Truncate(id, model string, maxTokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.convs[id]
	if !ok {
		return nil
	}
	for {
		count, err := CountTokens(e.messages, model)
		if err != nil {
			return err
		}
		if count <= maxTokens || len(e.messages) <= 1 {
			return nil
		}
		e.messages = append(e.messages[:1], e.messages[2:]...)
	}
}

// Get returns a copy of the conversation, oldest first. Nil if unseen.
func (s *Store) Get(id string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.convs[id]
	if !ok {
		return nil
	}
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// Len returns the number of messages in the conversation, 0 if unseen.
func (s *Store) Len(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.convs[id]
	if !ok {
		return 0
	}
	return len(e.messages)
}

// Cleanup removes conversations idle for longer than maxAge to prevent
// unbounded growth.
func (s *Store) Cleanup(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, e := range s.convs {
		if now.Sub(e.lastUsed) > maxAge {
			delete(s.convs, id)
		}
	}
}
