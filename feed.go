package goLockout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisChangeFeed propagates StateChange notifications over a Redis pub/sub
// channel. Every context sharing the store subscribes to the same channel;
// delivery is at-least-once and includes the publisher's own writes, which
// Manager filters by origin.
type RedisChangeFeed struct {
	redis   redis.UniversalClient
	channel string

	mu      sync.Mutex
	pubsubs map[*redis.PubSub]struct{}
	closed  bool
}

// NewRedisChangeFeed returns a feed on the given channel ("ls:changes" when
// empty).
func NewRedisChangeFeed(client redis.UniversalClient, channel string) *RedisChangeFeed {
	if channel == "" {
		channel = "ls:changes"
	}
	return &RedisChangeFeed{
		redis:   client,
		channel: channel,
		pubsubs: make(map[*redis.PubSub]struct{}),
	}
}

func (f *RedisChangeFeed) Publish(ctx context.Context, change StateChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	if err := f.redis.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	return nil
}

// Subscribe registers fn for all future changes on the channel. The
// subscription is confirmed before Subscribe returns, so a change published
// afterwards by any context will be delivered. Malformed messages are
// skipped.
func (f *RedisChangeFeed) Subscribe(fn func(StateChange)) (func(), error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: feed closed", ErrFeedUnavailable)
	}
	pubsub := f.redis.Subscribe(context.Background(), f.channel)
	f.pubsubs[pubsub] = struct{}{}
	f.mu.Unlock()

	if _, err := pubsub.Receive(context.Background()); err != nil {
		f.drop(pubsub)
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			var change StateChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				continue
			}
			fn(change)
		}
	}()

	return func() { f.drop(pubsub) }, nil
}

func (f *RedisChangeFeed) drop(pubsub *redis.PubSub) {
	f.mu.Lock()
	delete(f.pubsubs, pubsub)
	f.mu.Unlock()
	_ = pubsub.Close()
}

// Close tears down every live subscription. The Redis client itself belongs
// to the caller.
func (f *RedisChangeFeed) Close() error {
	f.mu.Lock()
	f.closed = true
	pubsubs := make([]*redis.PubSub, 0, len(f.pubsubs))
	for ps := range f.pubsubs {
		pubsubs = append(pubsubs, ps)
	}
	f.pubsubs = make(map[*redis.PubSub]struct{})
	f.mu.Unlock()

	for _, ps := range pubsubs {
		_ = ps.Close()
	}
	return nil
}
