// Package events fans engine log and report messages out to subscribers.
package events

import (
	"sync"
	"time"

	"github.com/vadiminshakov/gridsim/internal/domain"
)

// Level of a message.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Message is one log line produced by an engine or the orchestrator.
// Report is set on the per-tick status message.
type Message struct {
	Time       time.Time          `json:"ts"`
	Instrument string             `json:"instrument,omitempty"`
	Level      Level              `json:"level"`
	Text       string             `json:"text"`
	Report     *domain.TickReport `json:"report,omitempty"`
}

// Sink accepts messages. Publish must not block.
type Sink interface {
	Publish(m Message)
}

// Broadcaster fans out messages to all subscribers via buffered channels.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Message]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan Message]struct{}),
		buffer: buffer,
	}
}

// Publish sends the message to all subscribers, dropping if a reader is slow.
func (b *Broadcaster) Publish(m Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- m:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives messages until Unsubscribe is called.
func (b *Broadcaster) Subscribe() chan Message {
	ch := make(chan Message, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan Message) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(Message) {}
