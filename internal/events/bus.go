package events

import (
	"sync"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
)

const subscriberBuffer = 256

// Bus fans events out to subscribers. Publishing never blocks: when a
// subscriber's queue is full the oldest frame is dropped to make room.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and an unsubscribe func. The channel is
// closed on unsubscribe.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(channel string, payload any) {
	ev := Event{Channel: channel, Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Drop the oldest frame so the newest always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
				logger.Warn().Str("channel", channel).Msg("event dropped: subscriber stalled")
			}
		}
	}
}
