package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	topicLookupAttempts = 5
	topicLookupBackoff  = 2 * time.Second
)

// ensureTopic creates the topic unless the broker already reports partitions
// for it. Partition lookups are retried because a freshly started broker may
// not have loaded its metadata yet.
func ensureTopic(conn *kafka.Conn, topic string, partitions, replication int, logger *slog.Logger) error {
	var found []kafka.Partition
	var err error
	for attempt := 1; attempt <= topicLookupAttempts; attempt++ {
		found, err = conn.ReadPartitions(topic)
		if err == nil {
			break
		}
		logger.Warn("Topic lookup failed, retrying", "topic", topic, "attempt", attempt, "error", err)
		time.Sleep(topicLookupBackoff)
	}
	if len(found) > 0 {
		logger.Info("Kafka topic ready", "topic", topic, "partitions", len(found))
		return nil
	}

	cfg := kafka.TopicConfig{Topic: topic, NumPartitions: max(partitions, 1), ReplicationFactor: max(replication, 1)}
	if err := conn.CreateTopics(cfg); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	logger.Info("Created Kafka topic", "topic", topic, "partitions", cfg.NumPartitions, "replication_factor", cfg.ReplicationFactor)
	return nil
}
