package redisq

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"invitegate/internal/model"
	"invitegate/internal/pkg/logger"
)

// Dispatcher receives the decoded events of the stream.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev model.Event)
}

// Subscriber reads membership and invite events from a Redis Pub/Sub
// channel and forwards them to the dispatcher. Deployments that fan
// gateway traffic out through Redis run with this source. Delivery is
// transient; nothing is persisted or replayed.
type Subscriber struct {
	client     *redis.Client
	channel    string
	dispatcher Dispatcher
	logger     *logger.Logger
}

// NewSubscriber connects to Redis and verifies the connection with a
// ping before returning.
func NewSubscriber(addr, password string, db int, channel string, d Dispatcher, log *logger.Logger) (*Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Subscriber{
		client:     rdb,
		channel:    channel,
		dispatcher: d,
		logger:     log,
	}, nil
}

// Run subscribes to the channel and forwards messages until the context
// ends.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	// Wait for confirmation that the subscription is created.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to channel %s: %w", s.channel, err)
	}
	defer pubsub.Close()

	s.logger.Info("subscribed to event channel", zap.String("channel", s.channel))

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to channel %s closed", s.channel)
			}
			s.handleMessage(ctx, msg.Payload)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleMessage decodes one payload and hands it to the dispatcher.
// Malformed payloads are logged and dropped.
func (s *Subscriber) handleMessage(ctx context.Context, payload string) {
	ev, err := model.ParseEvent([]byte(payload))
	if err != nil {
		s.logger.Warn("skipping malformed event payload",
			zap.String("channel", s.channel),
			zap.Error(err),
		)
		return
	}
	s.dispatcher.Dispatch(ctx, ev)
}

// Close releases the Redis connection.
func (s *Subscriber) Close() error {
	return s.client.Close()
}
