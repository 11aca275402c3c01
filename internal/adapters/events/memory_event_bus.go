package events

import (
	"context"
	"sync"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
)

// MemoryEventBus is an in-process EventBus for single-binary setups and tests
type MemoryEventBus struct {
	mu     sync.Mutex
	subs   map[string]map[chan *entities.DatasetEvent]struct{}
	closed bool
}

// NewMemoryEventBus creates an empty in-process bus
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{subs: map[string]map[chan *entities.DatasetEvent]struct{}{}}
}

var _ providers.EventBus = (*MemoryEventBus)(nil)

// Publish hands event to every current subscriber without blocking
func (b *MemoryEventBus) Publish(ctx context.Context, channel string, event *entities.DatasetEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[channel] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel closed when ctx is done or on Unsubscribe
func (b *MemoryEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DatasetEvent, error) {
	ch := make(chan *entities.DatasetEvent, 16)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if b.subs[channel] == nil {
		b.subs[channel] = map[chan *entities.DatasetEvent]struct{}{}
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(channel, ch)
	}()
	return ch, nil
}

func (b *MemoryEventBus) remove(channel string, ch chan *entities.DatasetEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[channel][ch]; ok {
		delete(b.subs[channel], ch)
		close(ch)
	}
}

// Unsubscribe closes every subscriber of channel
func (b *MemoryEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[channel] {
		close(ch)
	}
	delete(b.subs, channel)
	return nil
}

// Close closes all subscribers and rejects new ones
func (b *MemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for channel, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, channel)
	}
	b.closed = true
	return nil
}
