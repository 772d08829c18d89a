package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resort-booking/internal/logger"
	"resort-booking/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	log    *logger.Logger
}

// NewProducer returns a producer whose writer picks the topic per message.
func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &Producer{writer: writer, log: log}
}

// Publish writes one message keyed by key to topic.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		p.log.Error("KAFKA", fmt.Sprintf("Publish to %s failed for key %s: %v", topic, key, err))
		return err
	}
	p.log.LogKafka("PUBLISH", topic, key)
	return nil
}

// PublishBookingEvent serializes evt and sends it to the topic for its type, keyed by booking id.
func (p *Producer) PublishBookingEvent(ctx context.Context, evt models.BookingEvent) error {
	topic, err := TopicFor(evt.Type)
	if err != nil {
		return err
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", evt.Type, err)
	}
	return p.Publish(ctx, topic, evt.BookingID, body)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// NoopProducer drops events. Used when KAFKA_ENABLED is false.
type NoopProducer struct {
	Log *logger.Logger
}

func (n NoopProducer) PublishBookingEvent(_ context.Context, evt models.BookingEvent) error {
	if n.Log != nil {
		n.Log.Debug("KAFKA", fmt.Sprintf("Kafka disabled, dropping %s for %s", evt.Type, evt.BookingID))
	}
	return nil
}

func (n NoopProducer) Close() error { return nil }
