package events

import (
	"sync"
	"time"
)

// Kind of dashboard update.
type Kind string

const (
	// KindPrices market state changed; the snapshot is in the journal at Index.
	KindPrices Kind = "prices"
	// KindNotice user-facing message, e.g. the name pool is exhausted.
	KindNotice Kind = "notice"
)

// Update is a domain event telling renderers that something changed.
type Update struct {
	Kind      Kind      `json:"kind"`
	Index     uint64    `json:"index,omitempty"`
	Notice    string    `json:"notice,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Broadcaster fans out updates to all subscribers via buffered channels.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Update]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan Update]struct{}),
		buffer: buffer,
	}
}

// Publish sends the update to all subscribers, dropping if a reader is slow.
func (b *Broadcaster) Publish(u Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- u:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives updates until Unsubscribe is called.
func (b *Broadcaster) Subscribe() chan Update {
	ch := make(chan Update, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan Update) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
