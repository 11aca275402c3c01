package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
	redisclient "github.com/zatekoja/maternidades/internal/infrastructure/clients/redis"
)

// RedisEventBus carries dataset events over Redis Pub/Sub. Each Subscribe
// call owns one Redis subscription; a full subscriber buffer drops events.
type RedisEventBus struct {
	client *redisclient.Client

	mu   sync.Mutex
	subs map[string][]*redis.PubSub
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	return &RedisEventBus{client: client, subs: map[string][]*redis.PubSub{}}
}

// Publish publishes an event to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.DatasetEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	log.Info().Str("channel", channel).Str("event_id", event.ID).Str("snapshot", event.SnapshotTag).Msg("dataset event published")
	return nil
}

// Subscribe delivers decoded events until ctx is done or the channel is
// unsubscribed.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DatasetEvent, error) {
	pubsub := b.client.Client().Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], pubsub)
	b.mu.Unlock()

	out := make(chan *entities.DatasetEvent, 16)
	go func() {
		defer close(out)
		defer b.drop(channel, pubsub)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event entities.DatasetEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Warn().Err(err).Str("channel", channel).Msg("undecodable dataset event")
					continue
				}
				select {
				case out <- &event:
				default:
					log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber busy, dataset event dropped")
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisEventBus) drop(channel string, pubsub *redis.PubSub) {
	b.mu.Lock()
	list := b.subs[channel]
	for i, p := range list {
		if p == pubsub {
			b.subs[channel] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[channel]) == 0 {
		delete(b.subs, channel)
	}
	b.mu.Unlock()
	_ = pubsub.Close()
}

// Unsubscribe closes every subscription on channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	list := b.subs[channel]
	delete(b.subs, channel)
	b.mu.Unlock()

	var firstErr error
	for _, p := range list {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close subscription %s: %w", channel, err)
		}
	}
	return firstErr
}

// Close closes all subscriptions
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	channels := make([]string, 0, len(b.subs))
	for c := range b.subs {
		channels = append(channels, c)
	}
	b.mu.Unlock()

	var firstErr error
	for _, c := range channels {
		if err := b.Unsubscribe(context.Background(), c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
