package notify

import (
	"context"
	"encoding/json"

	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/domain"
)

// Publisher delivers one event to the push transport.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// RedisPublisher publishes events as JSON on a Redis pub/sub channel; the realtime gateway
// subscribed to it fans them out to connected clients.
type RedisPublisher struct {
	client  goRedis.UniversalClient
	channel string
}

func NewRedisPublisher(client goRedis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = "dailyquest:events"
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// LogPublisher only logs events; it stands in when no transport is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.Event) error {
	p.logger.Info("event emitted",
		zap.String("event_id", event.ID),
		zap.String("event", event.Name),
		zap.ByteString("payload", event.Payload))
	return nil
}

// Direct emits synchronously through a publisher. It serves short-lived processes that have no
// dispatcher running; failures are logged and dropped.
type Direct struct {
	publisher Publisher
	logger    *zap.Logger
}

func NewDirect(publisher Publisher, logger *zap.Logger) *Direct {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Direct{publisher: publisher, logger: logger}
}

func (d *Direct) Emit(ctx context.Context, event domain.Event) {
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Warn("event dropped", zap.String("event", event.Name), zap.Error(err))
	}
}
