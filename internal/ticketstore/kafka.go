//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ticketstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes records as JSON messages keyed by Record.Key. The
// hash balancer sends all events of a ticket to the same partition.
type KafkaSink struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) *KafkaSink {
	return newKafkaSink(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}, topic, logger)
}

func newKafkaSink(w messageWriter, topic string, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSink{writer: w, topic: topic, logger: logger}
}

// Publish implements Sink.
func (k *KafkaSink) Publish(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rec.Key()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(rec.Status)},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", k.topic, err)
	}

	k.logger.Debug("published ticket outcome", "trace_id", rec.TraceID, "key", rec.Key(), "topic", k.topic)
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
