package v1

import (
	"encoding/json"
	"sync"

	"github.com/garciabuilder/site-service/internal/core/domain"
)

// Update is published after every profile save so open views can refresh.
type Update struct {
	UserID  string          `json:"user_id"`
	Section domain.Section  `json:"section"`
	Data    json.RawMessage `json:"data"`
	Synced  bool            `json:"synced"`
}

// Broadcaster fans profile updates out to subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the update.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

type subscriber struct {
	userID string
	ch     chan Update
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]*subscriber)}
}

// Subscribe registers for updates of userID ("" receives every user).
// The returned cancel func unregisters and closes the channel. After Close
// the channel is returned already closed.
func (b *Broadcaster) Subscribe(userID string, buffer int) (<-chan Update, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{userID: userID, ch: make(chan Update, buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

// Publish delivers u to every matching subscriber.
func (b *Broadcaster) Publish(u Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.userID != "" && s.userID != u.UserID {
			continue
		}
		select {
		case s.ch <- u:
		default:
		}
	}
}

// Close ends every subscription; open event streams see their channel
// close and return. Later Publish calls are dropped.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		s.close()
	}
}

// Subscribers returns the number of registered subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
