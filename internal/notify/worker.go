package notify

import (
	"context"
	"fmt"

	"resort-booking/internal/logger"
	"resort-booking/internal/models"
)

type RefundMailer interface {
	SendRefundDecision(ctx context.Context, b *models.Booking) error
}

// Worker turns refund decision events from Kafka into customer emails.
type Worker struct {
	Mailer RefundMailer
	Logger *logger.Logger
}

func NewWorker(mailer RefundMailer, log *logger.Logger) *Worker {
	return &Worker{Mailer: mailer, Logger: log}
}

// Handle is the consumer callback. Events other than refund decisions are ignored.
func (w *Worker) Handle(ctx context.Context, evt models.BookingEvent) error {
	switch evt.Type {
	case models.EventRefundApproved, models.EventRefundRejected:
	default:
		w.Logger.Debug("NOTIFY", fmt.Sprintf("Ignoring %s for %s", evt.Type, evt.BookingID))
		return nil
	}
	if evt.Booking == nil || evt.Booking.UserEmail == "" {
		return fmt.Errorf("%s event for %s has no recipient", evt.Type, evt.BookingID)
	}
	w.Logger.Info("NOTIFY", fmt.Sprintf("Emailing refund decision (%s) for booking %s", evt.Booking.Refund.Status, evt.BookingID))
	return w.Mailer.SendRefundDecision(ctx, evt.Booking)
}

// PublishBookingEvent lets the worker stand in for the Kafka producer when Kafka
// is disabled. The event is handled in the background; errors are only logged.
func (w *Worker) PublishBookingEvent(ctx context.Context, evt models.BookingEvent) error {
	go func() {
		if err := w.Handle(context.WithoutCancel(ctx), evt); err != nil {
			w.Logger.Error("NOTIFY", fmt.Sprintf("Inline handling of %s for %s failed: %v", evt.Type, evt.BookingID, err))
		}
	}()
	return nil
}
