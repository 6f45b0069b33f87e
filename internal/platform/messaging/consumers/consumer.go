package consumers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"

	"github.com/phed-ledger/internal/config"
)

// laneBuffer is how many fetched messages may wait behind a busy partition
const laneBuffer = 64

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}

// KafkaReader wraps kafka.Reader methods for testing
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer implements Consumer using a Kafka consumer group. Offsets are
// committed only after the handler succeeds, so delivery is at least once.
// A failing message is retried in place; later messages of the partition wait for it.
type KafkaConsumer struct {
	reader        KafkaReader
	logger        *slog.Logger
	topic         string
	groupID       string
	retryDelay    time.Duration
	maxRetryDelay time.Duration
}

func NewKafkaConsumer(logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	startOffset := cfg.StartOffset
	if startOffset == 0 {
		startOffset = kafka.FirstOffset
	}
	return &KafkaConsumer{
		logger:        logger,
		topic:         cfg.EventTopic,
		groupID:       cfg.ConsumerGroup,
		retryDelay:    time.Second,
		maxRetryDelay: 30 * time.Second,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.EventTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: startOffset,
		}),
	}
}

// Subscribe processes messages with handler on a background goroutine until ctx is done
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic", "topic", c.topic, "group_id", c.groupID)
	go c.consume(ctx, handler)
	return nil
}

// consume fetches messages and hands each partition to its own goroutine, so
// partitions are processed concurrently while every partition keeps its order.
func (c *KafkaConsumer) consume(ctx context.Context, handler MessageHandler) {
	var wg sync.WaitGroup
	lanes := make(map[int]chan kafka.Message)
	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
		wg.Wait()
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Context canceled, stopping consumer", "topic", c.topic, "group_id", c.groupID)
				return
			}
			c.logger.Error("Failed to fetch message from Kafka", "topic", c.topic, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
			continue
		}

		lane, ok := lanes[msg.Partition]
		if !ok {
			lane = make(chan kafka.Message, laneBuffer)
			lanes[msg.Partition] = lane
			wg.Add(1)
			go func(partition int, lane <-chan kafka.Message) {
				defer wg.Done()
				c.drain(ctx, partition, lane, handler)
			}(msg.Partition, lane)
		}

		select {
		case lane <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// drain handles and commits the messages of one partition in order
func (c *KafkaConsumer) drain(ctx context.Context, partition int, lane <-chan kafka.Message, handler MessageHandler) {
	c.logger.Debug("Partition worker started", "topic", c.topic, "partition", partition)
	for msg := range lane {
		logger := c.logger.With(
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
		)

		if !c.handle(ctx, logger, handler, msg) {
			logger.Info("Context canceled before message was processed, offset not committed")
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Error("Failed to commit message after successful processing", "error", err)
			continue
		}
		logger.Debug("Message committed")
	}
}

// handle runs handler on msg until it succeeds. It reports false only when ctx ends first.
// Skipping the message instead would let the commit of a later offset move the group past it.
func (c *KafkaConsumer) handle(ctx context.Context, logger *slog.Logger, handler MessageHandler, msg kafka.Message) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxInterval = c.maxRetryDelay
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Reset()

	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg.Key, msg.Value)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		delay := b.NextBackOff()
		logger.Error("Failed to process message, retrying", "attempt", attempt, "retry_in", delay, "error", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
