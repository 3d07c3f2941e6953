package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"go.uber.org/zap"
)

const (
	defaultCloseTimeout        = 5 * time.Second
	defaultInvalidationChannel = "tenantcore:registry:invalidate"
)

// InvalidationMessage is the Pub/Sub payload fanning registry invalidations out to other instances
type InvalidationMessage struct {
	Origin        string                 `json:"origin"`
	Invalidations []tenancy.Invalidation `json:"invalidations"`
	Timestamp     int64                  `json:"timestamp"`
}

// RedisRegistryInvalidator broadcasts registry invalidations over Redis Pub/Sub
// and applies the ones published by other instances
type RedisRegistryInvalidator struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	channel    string
	origin     string
	logger     *zap.Logger
	cancelFn   context.CancelFunc
	doneCh     chan struct{}
	doneOnce   sync.Once
	mu         sync.Mutex
	isRunning  bool
}

// RedisRegistryInvalidatorOption is a functional option for configuring the invalidator
type RedisRegistryInvalidatorOption func(*RedisRegistryInvalidator)

// WithInvalidatorChannel sets the Pub/Sub channel name
func WithInvalidatorChannel(channel string) RedisRegistryInvalidatorOption {
	return func(i *RedisRegistryInvalidator) {
		if channel != "" {
			i.channel = channel
		}
	}
}

// WithInvalidatorLogger sets the logger for the invalidator
func WithInvalidatorLogger(logger *zap.Logger) RedisRegistryInvalidatorOption {
	return func(i *RedisRegistryInvalidator) {
		i.logger = logger
	}
}

// NewRedisRegistryInvalidator connects to Redis and creates an invalidator that owns the client
func NewRedisRegistryInvalidator(cfg RedisConfig, opts ...RedisRegistryInvalidatorOption) (*RedisRegistryInvalidator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	i := NewRedisRegistryInvalidatorWithClient(client, opts...)
	i.ownsClient = true
	return i, nil
}

// NewRedisRegistryInvalidatorWithClient creates an invalidator with an existing Redis client.
// The caller retains ownership of the client.
func NewRedisRegistryInvalidatorWithClient(client *redis.Client, opts ...RedisRegistryInvalidatorOption) *RedisRegistryInvalidator {
	i := &RedisRegistryInvalidator{
		client:  client,
		channel: defaultInvalidationChannel,
		origin:  uuid.NewString(),
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Broadcast publishes invalidations to every other subscribed instance
func (i *RedisRegistryInvalidator) Broadcast(ctx context.Context, invalidations []tenancy.Invalidation) error {
	if len(invalidations) == 0 {
		return nil
	}

	data, err := json.Marshal(InvalidationMessage{
		Origin:        i.origin,
		Invalidations: invalidations,
		Timestamp:     time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := i.client.Publish(ctx, i.channel, data).Err(); err != nil {
		i.logger.Error("Failed to publish registry invalidation",
			zap.String("channel", i.channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	i.logger.Debug("Published registry invalidation",
		zap.Int("entries", len(invalidations)),
		zap.String("channel", i.channel))
	return nil
}

// Subscribe applies invalidations published by other instances until ctx is done or Close is called.
// It blocks; run it in a goroutine.
func (i *RedisRegistryInvalidator) Subscribe(ctx context.Context, apply func(tenancy.Invalidation)) error {
	i.mu.Lock()
	if i.isRunning {
		i.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	i.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	i.cancelFn = cancel
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.isRunning = false
		i.mu.Unlock()
		i.markDone()
	}()

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	i.logger.Info("Subscribed to registry invalidation channel",
		zap.String("channel", i.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			i.logger.Info("Registry invalidation subscription stopped")
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				i.logger.Warn("Registry invalidation channel closed")
				return nil
			}
			i.handle(msg.Payload, apply)
		}
	}
}

// handle decodes one payload and applies it unless this instance published it.
// Returns the number of invalidations applied.
func (i *RedisRegistryInvalidator) handle(payload string, apply func(tenancy.Invalidation)) int {
	var msg InvalidationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		i.logger.Error("Failed to unmarshal registry invalidation",
			zap.String("payload", payload),
			zap.Error(err))
		return 0
	}
	if msg.Origin == i.origin {
		return 0
	}

	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("Panic in registry invalidation callback", zap.Any("panic", r))
		}
	}()

	for _, inv := range msg.Invalidations {
		apply(inv)
	}
	i.logger.Debug("Applied remote registry invalidation",
		zap.String("origin", msg.Origin),
		zap.Int("entries", len(msg.Invalidations)))
	return len(msg.Invalidations)
}

// markDone safely marks the invalidator as done
func (i *RedisRegistryInvalidator) markDone() {
	i.doneOnce.Do(func() {
		close(i.doneCh)
	})
}

// Close stops the subscription and releases the client if owned
func (i *RedisRegistryInvalidator) Close() error {
	i.mu.Lock()
	cancelFn := i.cancelFn
	i.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-i.doneCh:
		case <-time.After(defaultCloseTimeout):
			i.logger.Warn("Timeout waiting for subscription to stop")
		}
	}

	if i.ownsClient {
		return i.client.Close()
	}
	return nil
}

var _ tenancy.InvalidationFanout = (*RedisRegistryInvalidator)(nil)
