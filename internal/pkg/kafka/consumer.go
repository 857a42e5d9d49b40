package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"invitegate/internal/model"
	"invitegate/internal/pkg/logger"
)

// Dispatcher receives the decoded events of the stream.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev model.Event)
}

// Consumer reads membership and invite events from a Kafka topic and
// forwards them to the dispatcher. Deployments that fan gateway traffic
// through Kafka run with this source instead of a direct gateway
// session.
type Consumer struct {
	group      sarama.ConsumerGroup
	topic      string
	dispatcher Dispatcher
	logger     *logger.Logger
	ready      chan struct{}
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	consumer *Consumer
}

// NewConsumer joins the consumer group on the given brokers.
//
// Parameters:
//   - brokers: Kafka broker addresses
//   - topic: topic carrying the event JSON
//   - groupID: consumer group to join
//   - d: dispatcher receiving decoded events
//   - log: structured logger
//
// Returns:
//   - *Consumer: the created consumer
//   - error: any error encountered while joining the group
func NewConsumer(brokers []string, topic, groupID string, d Dispatcher, log *logger.Logger) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_6_0_0
	cfg.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	// Connection timeouts to prevent hanging on unreachable brokers.
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 10 * time.Second
	cfg.Net.WriteTimeout = 10 * time.Second
	cfg.Metadata.Retry.Max = 3
	cfg.Metadata.Retry.Backoff = 250 * time.Millisecond
	cfg.Metadata.Timeout = 10 * time.Second

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating kafka consumer group: %w", err)
	}

	return &Consumer{
		group:      group,
		topic:      topic,
		dispatcher: d,
		logger:     log,
		ready:      make(chan struct{}),
	}, nil
}

// Run consumes until the context ends. Rebalances re-enter the claim
// loop; the group is closed on the way out.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.group.Close()

	go func() {
		for err := range c.group.Errors() {
			c.logger.Warn("kafka consumer error", zap.Error(err))
		}
	}()

	handler := &consumerGroupHandler{consumer: c}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error("kafka consume failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.ready = make(chan struct{})
	}
}

// Ready is closed once the consumer has joined a session and may
// receive records.
func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

// handleRecord decodes one record and hands it to the dispatcher.
// Malformed records are logged and skipped; the offset advances either
// way.
func (c *Consumer) handleRecord(ctx context.Context, message *sarama.ConsumerMessage) {
	ev, err := model.ParseEvent(message.Value)
	if err != nil {
		c.logger.Warn("skipping malformed event record",
			zap.String("topic", message.Topic),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.Error(err),
		)
		return
	}
	c.dispatcher.Dispatch(ctx, ev)
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.consumer.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim
// goroutines have exited.
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes records from one partition until the session
// ends.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.consumer.handleRecord(session.Context(), message)
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
