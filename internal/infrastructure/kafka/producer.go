package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
)

var (
	// ErrProducerClosed is returned when publishing after Close
	ErrProducerClosed = errors.New("event producer is closed")

	// ErrEventDropped is returned when the producer buffer is full
	ErrEventDropped = errors.New("event producer buffer is full, event dropped")
)

// ProducerConfig holds configuration for the event producer
type ProducerConfig struct {
	Brokers    []string
	Topic      string
	MaxRetries int
	Logger     zerolog.Logger
}

// EventProducer publishes pool events to Kafka through an async producer.
// Publish never waits for delivery; delivery errors are logged by a handler goroutine.
type EventProducer struct {
	producer sarama.AsyncProducer
	topic    string
	logger   zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewEventProducer connects an async producer to the brokers
func NewEventProducer(cfg ProducerConfig) (*EventProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers specified")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = cfg.MaxRetries
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.ClientID = "pool-service-producer"
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	p := newEventProducer(producer, cfg.Topic, cfg.Logger)

	cfg.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka event producer initialized successfully")

	return p, nil
}

func newEventProducer(producer sarama.AsyncProducer, topic string, logger zerolog.Logger) *EventProducer {
	p := &EventProducer{
		producer: producer,
		topic:    topic,
		logger:   logger.With().Str("component", "event-producer").Logger(),
	}

	p.wg.Add(2)
	go p.handleSuccesses()
	go p.handleErrors()

	return p
}

// Publish queues event keyed by its account id
func (p *EventProducer) Publish(ctx context.Context, event entities.PoolEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publishing: %w", err)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal pool event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.AccountID),
		Value:     sarama.ByteEncoder(value),
		Timestamp: event.OccurredAt,
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrProducerClosed
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	default:
		p.dropped.Add(1)
		return ErrEventDropped
	}
}

// Dropped returns how many events were dropped on a full buffer
func (p *EventProducer) Dropped() int64 {
	return p.dropped.Load()
}

// Failed returns how many events failed delivery
func (p *EventProducer) Failed() int64 {
	return p.failed.Load()
}

func (p *EventProducer) handleSuccesses() {
	defer p.wg.Done()

	for msg := range p.producer.Successes() {
		p.logger.Debug().
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Event delivered to Kafka")
	}
}

func (p *EventProducer) handleErrors() {
	defer p.wg.Done()

	for producerErr := range p.producer.Errors() {
		p.failed.Add(1)
		p.logger.Error().
			Err(producerErr.Err).
			Str("topic", producerErr.Msg.Topic).
			Interface("key", producerErr.Msg.Key).
			Msg("Failed to deliver event to Kafka")
	}
}

// Close flushes pending events and stops the producer. It is idempotent.
func (p *EventProducer) Close() error {
	return p.CloseWithTimeout(10 * time.Second)
}

// CloseWithTimeout is Close with a custom flush timeout
func (p *EventProducer) CloseWithTimeout(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.logger.Info().Dur("timeout", timeout).Msg("Closing Kafka event producer")

	var closeErr error
	if err := p.producer.Close(); err != nil {
		closeErr = fmt.Errorf("producer close failed: %w", err)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for event handlers after %v", timeout)
	}

	p.logger.Info().
		Int64("dropped", p.dropped.Load()).
		Int64("failed", p.failed.Load()).
		Msg("Kafka event producer closed")

	return closeErr
}

// NoopPublisher discards events. It is used when no brokers are configured.
type NoopPublisher struct{}

// Publish discards the event
func (NoopPublisher) Publish(ctx context.Context, event entities.PoolEvent) error {
	return nil
}

// Close does nothing
func (NoopPublisher) Close() error {
	return nil
}

var (
	_ deps.EventPublisher = (*EventProducer)(nil)
	_ deps.EventPublisher = NoopPublisher{}
)
