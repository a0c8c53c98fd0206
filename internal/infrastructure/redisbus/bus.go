// Package redisbus fans realtime events out across server instances over a
// Redis pub/sub channel.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/checkerhub/checkerhub/internal/domain/notification"
	"github.com/checkerhub/checkerhub/internal/metrics"
)

// DefaultChannel is the pub/sub channel events travel on.
const DefaultChannel = "checkerhub:events"

// Bus publishes events to Redis and delivers events received from Redis to
// the local hub.
type Bus struct {
	client  *redis.Client
	channel string
	hub     notification.Hub
	logger  zerolog.Logger
}

// Connect parses redisURL, pings the server and returns a bus bound to hub.
func Connect(ctx context.Context, redisURL string, hub notification.Hub, logger zerolog.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, DefaultChannel, hub, logger), nil
}

func New(client *redis.Client, channel string, hub notification.Hub, logger zerolog.Logger) *Bus {
	return &Bus{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logger.With().Str("component", "redisbus").Logger(),
	}
}

// Publish implements notification.Publisher.
func (b *Bus) Publish(ctx context.Context, event *notification.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	start := time.Now()
	err = b.client.Publish(ctx, b.channel, data).Err()
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
	return err
}

// Run subscribes to the channel and delivers every event to the local hub
// until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info().Str("channel", b.channel).Msg("subscribed to events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch([]byte(msg.Payload))
		}
	}
}

func (b *Bus) dispatch(data []byte) {
	var event notification.Event
	if err := json.Unmarshal(data, &event); err != nil {
		b.logger.Warn().Err(err).Msg("dropping malformed event")
		return
	}
	notification.Deliver(b.hub, &event)
}

// Ping checks the Redis connection.
func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Client exposes the connection for other Redis-backed components.
func (b *Bus) Client() *redis.Client {
	return b.client
}

func (b *Bus) Close() error {
	return b.client.Close()
}

// LocalPublisher delivers events straight into a hub. It serves single
// instance deployments without Redis.
type LocalPublisher struct {
	hub notification.Hub
}

func NewLocalPublisher(hub notification.Hub) *LocalPublisher {
	return &LocalPublisher{hub: hub}
}

func (p *LocalPublisher) Publish(_ context.Context, event *notification.Event) error {
	notification.Deliver(p.hub, event)
	return nil
}
