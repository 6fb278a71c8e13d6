package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

// Sink receives completion events
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Producer publishes events to a Kafka topic
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers []string
	Topic   string
}

// NewSaramaConfig returns the producer settings used for completion events.
func NewSaramaConfig() *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	return saramaConfig
}

// NewProducer connects a producer to the brokers
func NewProducer(config ProducerConfig) (*Producer, error) {
	p, err := sarama.NewSyncProducer(config.Brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewProducerWith(p, config.Topic), nil
}

// NewProducerWith wraps an existing sarama producer.
func NewProducerWith(p sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: p, topic: topic}
}

// Publish sends e keyed by its clip or job id
func (p *Producer) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.Key()),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
			{Key: []byte("event_id"), Value: []byte(e.ID)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("type", e.Type).Str("key", e.Key()).Int32("partition", partition).Int64("offset", offset).Msg("Published event")
	return nil
}

// Close flushes and closes the producer
func (p *Producer) Close() error {
	return p.producer.Close()
}

// Dispatcher publishes events from a buffered queue on its own goroutine so
// state listeners never block on Kafka.
type Dispatcher struct {
	sink Sink
	ch   chan Event
	wg   sync.WaitGroup
	once sync.Once
}

// NewDispatcher starts a dispatcher with room for buffer queued events.
func NewDispatcher(sink Sink, buffer int) *Dispatcher {
	d := &Dispatcher{sink: sink, ch: make(chan Event, buffer)}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for e := range d.ch {
		if err := d.sink.Publish(context.Background(), e); err != nil {
			log.Error().Err(err).Str("type", e.Type).Str("key", e.Key()).Msg("Failed to publish event")
		}
	}
}

// Send queues e, dropping it when the queue is full.
func (d *Dispatcher) Send(e Event) {
	select {
	case d.ch <- e:
	default:
		log.Warn().Str("type", e.Type).Str("key", e.Key()).Msg("Event queue full, dropping event")
	}
}

// Close drains the queue and closes the sink.
func (d *Dispatcher) Close() error {
	var err error
	d.once.Do(func() {
		close(d.ch)
		d.wg.Wait()
		err = d.sink.Close()
	})
	return err
}
