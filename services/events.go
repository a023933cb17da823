package services

import (
	"sync"
	"time"
)

type ProgressScope string

const (
	ScopeSkills  ProgressScope = "skills"
	ScopeQuests  ProgressScope = "quests"
	ScopeProfile ProgressScope = "profile"
)

// ProgressEvent is emitted after any mutating operation so subscribers
// (caches, UI push) can refetch the affected scope.
type ProgressEvent struct {
	UserID string        `json:"user_id"`
	Scope  ProgressScope `json:"scope"`
	At     time.Time     `json:"at"`
}

// ProgressBroadcaster is a process-local fanout. Publish never blocks; a slow
// subscriber drops events rather than stalling the write path.
type ProgressBroadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan ProgressEvent
}

func NewProgressBroadcaster() *ProgressBroadcaster {
	return &ProgressBroadcaster{subs: make(map[int]chan ProgressEvent)}
}

// Subscribe returns a receive channel and a cancel func that must be called
// when the subscriber goes away.
func (b *ProgressBroadcaster) Subscribe() (<-chan ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan ProgressEvent, 16)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (b *ProgressBroadcaster) Publish(ev ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
