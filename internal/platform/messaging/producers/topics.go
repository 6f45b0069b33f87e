package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/phed-ledger/internal/config"
)

const (
	topicReadAttempts = 5
	topicReadDelay    = 2 * time.Second
)

// TopicAdmin is the part of kafka.Conn used to inspect and create topics
type TopicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// ensureTopic dials the broker and creates topic when it does not exist yet
func ensureTopic(logger *slog.Logger, cfg *config.KafkaConfig, topic string) error {
	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	return createTopicIfNotExists(logger, conn, topic, cfg.NumPartitions, cfg.ReplicationFactor, topicReadDelay)
}

// createTopicIfNotExists retries partition reads before concluding that topic is missing
func createTopicIfNotExists(logger *slog.Logger, admin TopicAdmin, topic string, numPartitions, replicationFactor int, delay time.Duration) error {
	var partitions []kafka.Partition
	var err error

	for i := 0; i < topicReadAttempts; i++ {
		partitions, err = admin.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			logger.Info("Kafka topic already exists", "topic", topic, "partitions", len(partitions))
			return nil
		}
		logger.Warn("Failed to read partitions, retrying", "topic", topic, "attempt", i+1, "error", err)
		time.Sleep(delay)
	}

	if numPartitions <= 0 {
		numPartitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	logger.Info("Creating Kafka topic", "topic", topic, "partitions", numPartitions, "last_read_error", err)
	if err := admin.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	return nil
}
