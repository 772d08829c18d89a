package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resort-booking/internal/logger"
	"resort-booking/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

// Consumer reads booking events from a set of topics as part of a consumer group.
type Consumer struct {
	reader     messageReader
	log        *logger.Logger
	retryDelay time.Duration // first pause after a failed fetch, doubled up to maxRetryDelay
}

func NewConsumer(brokers []string, groupID string, topics []string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{reader: reader, log: log, retryDelay: defaultRetryDelay}
}

// Start blocks until ctx is cancelled, handing each decoded event to handler.
// A message is committed once the handler returns, even on error; bad payloads are skipped.
func (c *Consumer) Start(ctx context.Context, handler func(context.Context, models.BookingEvent) error) {
	c.log.Info("KAFKA", "Kafka consumer started")
	delay := c.retryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	backoff := delay
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.log.Info("KAFKA", "Kafka consumer stopped")
				return
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error reading message, retrying in %s: %v", backoff, err))
			select {
			case <-ctx.Done():
				c.log.Info("KAFKA", "Kafka consumer stopped")
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxRetryDelay)
			continue
		}
		backoff = delay

		var evt models.BookingEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			c.log.Warn("KAFKA", fmt.Sprintf("Failed to decode message on %s at offset %d: %v", msg.Topic, msg.Offset, err))
		} else {
			c.log.LogKafka("RECEIVE", msg.Topic, evt.BookingID)
			if err := handler(ctx, evt); err != nil {
				c.log.Error("KAFKA", fmt.Sprintf("Handler failed for %s on %s: %v", evt.BookingID, msg.Topic, err))
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("KAFKA", fmt.Sprintf("Commit failed on %s at offset %d: %v", msg.Topic, msg.Offset, err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
