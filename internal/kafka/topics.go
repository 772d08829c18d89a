package kafka

import (
	"errors"
	"fmt"
	"time"

	"resort-booking/internal/logger"
	"resort-booking/internal/models"

	"github.com/segmentio/kafka-go"
)

const (
	TopicBookingCreated = "resort.booking.created"
	TopicPaymentSuccess = "resort.payment.success"
	TopicPaymentFailed  = "resort.payment.failed"
	TopicRefundRequest  = "resort.refund.requested"
	TopicRefundApproved = "resort.refund.approved"
	TopicRefundRejected = "resort.refund.rejected"
)

// AllTopics lists every topic the service writes to.
func AllTopics() []string {
	return []string{
		TopicBookingCreated,
		TopicPaymentSuccess,
		TopicPaymentFailed,
		TopicRefundRequest,
		TopicRefundApproved,
		TopicRefundRejected,
	}
}

// TopicFor maps a booking event type to its topic.
func TopicFor(eventType string) (string, error) {
	switch eventType {
	case models.EventBookingCreated:
		return TopicBookingCreated, nil
	case models.EventPaymentSuccess:
		return TopicPaymentSuccess, nil
	case models.EventPaymentFailed:
		return TopicPaymentFailed, nil
	case models.EventRefundRequest:
		return TopicRefundRequest, nil
	case models.EventRefundApproved:
		return TopicRefundApproved, nil
	case models.EventRefundRejected:
		return TopicRefundRejected, nil
	}
	return "", fmt.Errorf("no topic for event type %q", eventType)
}

// EnsureTopicsExist creates topics through the cluster controller, ignoring ones that already exist.
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		if err != nil {
			if errors.Is(err, kafka.TopicAlreadyExists) {
				log.Debug("KAFKA", fmt.Sprintf("Topic %s already exists", topic))
				continue
			}
			log.Warn("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
			continue
		}
		log.LogKafka("CREATE_TOPIC", topic, "created")
	}

	// Give the controller a moment to propagate metadata.
	time.Sleep(1 * time.Second)
	return nil
}
