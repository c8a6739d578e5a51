package goLockout

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goLockout/internal/stores"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ StateStore = (*stores.RedisStore)(nil)
var _ ChangeFeed = (*RedisChangeFeed)(nil)

// Builder assembles a Manager. A single Redis client covers both storage
// and the change feed; either can be replaced with a custom implementation.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  StateStore
	feed   ChangeFeed
	sink   AuditSink
	built  bool
}

// New returns a builder loaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the shipped store and feed.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore replaces the shipped Redis store with a custom StateStore.
func (b *Builder) WithStore(store StateStore) *Builder {
	b.store = store
	return b
}

// WithFeed replaces the shipped Redis pub/sub feed with a custom ChangeFeed.
// The manager does not close a feed supplied here.
func (b *Builder) WithFeed(feed ChangeFeed) *Builder {
	b.feed = feed
	return b
}

// WithAuditSink sets the event sink; auditing also requires
// Config.Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithSecret sets the storage secret without replacing the rest of the
// configuration.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.Storage.Secret = make([]byte, len(secret))
	copy(b.config.Storage.Secret, secret)
	return b
}

// WithMetricsEnabled toggles the counter collector.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithAuditEnabled toggles the async event dispatcher.
func (b *Builder) WithAuditEnabled(enabled bool) *Builder {
	b.config.Audit.Enabled = enabled
	return b
}

// Build wires the manager and subscribes it to the change feed. A builder
// builds once.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	cfg := b.config
	cfg.Manager = sanitizeManagerConfig(cfg.Manager)
	cfg.Monitor = sanitizeMonitorConfig(cfg.Monitor)

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, ErrNoBackend
		}
		var err error
		store, err = stores.NewRedisStore(b.redis, cfg.Storage.RedisPrefix, cfg.Storage.Secret)
		if err != nil {
			if errors.Is(err, stores.ErrSecretTooShort) {
				return nil, ErrSecretRequired
			}
			return nil, fmt.Errorf("build state store: %w", err)
		}
	}

	feed := b.feed
	ownsFeed := false
	if feed == nil && b.redis != nil {
		feed = NewRedisChangeFeed(b.redis, cfg.Storage.ChangeChannel)
		ownsFeed = true
	}

	m := &Manager{
		cfg:         cfg,
		store:       store,
		feed:        feed,
		metrics:     NewMetrics(cfg.Metrics),
		audit:       newAuditDispatcher(cfg.Audit, b.sink),
		origin:      uuid.NewString(),
		ownsFeed:    ownsFeed,
		now:         time.Now,
		subscribers: make(map[int]func(StateChange)),
		lastSeen:    make(map[string]int64),
	}

	if feed != nil {
		unsub, err := feed.Subscribe(m.handleRemoteChange)
		if err != nil {
			m.audit.Close()
			return nil, err
		}
		m.unsubFeed = unsub
	}

	return m, nil
}
