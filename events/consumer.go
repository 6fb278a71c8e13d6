package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

// Handler processes one decoded event
type Handler func(ctx context.Context, e Event) error

// Consumer reads completion events from Kafka
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	groupID string
	handler Handler
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler Handler
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config ConsumerConfig) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		group:   group,
		topic:   config.Topic,
		groupID: config.GroupID,
		handler: config.Handler,
	}, nil
}

// Run consumes until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			log.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	log.Info().Str("group", c.groupID).Str("topic", c.topic).Msg("Kafka consumer started")
	h := &groupHandler{handler: c.handler}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Msg("Error from Kafka consumer")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close gracefully shuts down the consumer
func (c *Consumer) Close() error {
	return c.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	handler Handler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages()
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			if h.handle(session.Context(), message.Value) {
				session.MarkMessage(message, "")
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// handle decodes and processes one message and reports whether to mark it.
// Undecodable messages are marked so they are skipped.
func (h *groupHandler) handle(ctx context.Context, value []byte) bool {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		log.Warn().Err(err).Msg("Skipping undecodable event")
		return true
	}
	if err := h.handler(ctx, e); err != nil {
		log.Error().Err(err).Str("type", e.Type).Msg("Failed to handle event")
		return false
	}
	return true
}
