package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resort-booking/internal/logger"

	"github.com/go-redis/redis/v8"
)

const holdPrefix = "booking_hold:"

// PaymentHolds marks pending bookings with a key that expires when the payment
// window closes. Expiry is observed through keyspace notifications.
type PaymentHolds struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewPaymentHolds(client *redis.Client, ttl time.Duration, log *logger.Logger) *PaymentHolds {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &PaymentHolds{Client: client, TTL: ttl, Logger: log}
}

func (h *PaymentHolds) Hold(ctx context.Context, bookingID string) error {
	if err := h.Client.Set(ctx, holdPrefix+bookingID, "pending", h.TTL).Err(); err != nil {
		return fmt.Errorf("redis hold %s: %w", bookingID, err)
	}
	return nil
}

// Release drops the hold once the booking is settled so it never fires.
func (h *PaymentHolds) Release(ctx context.Context, bookingID string) error {
	if err := h.Client.Del(ctx, holdPrefix+bookingID).Err(); err != nil {
		return fmt.Errorf("redis release hold %s: %w", bookingID, err)
	}
	return nil
}

// Subscribe calls onExpire for every hold that lapses until ctx is cancelled.
// It enables "Ex" keyspace notifications if the server allows CONFIG SET.
func (h *PaymentHolds) Subscribe(ctx context.Context, onExpire func(ctx context.Context, bookingID string)) {
	if _, err := h.Client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result(); err != nil {
		h.Logger.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	} else {
		h.Logger.Info("REDIS", "Keyspace notifications enabled for expired events")
	}

	channel := fmt.Sprintf("__keyevent@%d__:expired", h.Client.Options().DB)
	pubsub := h.Client.PSubscribe(ctx, channel)
	h.Logger.Info("REDIS", fmt.Sprintf("Subscribed to %s", channel))

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				h.Logger.Info("REDIS", "Payment hold subscription stopped")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if id, ok := BookingIDFromHoldKey(msg.Payload); ok {
					h.Logger.Info("REDIS", fmt.Sprintf("Payment hold expired for booking %s", id))
					onExpire(ctx, id)
				}
			}
		}
	}()
}

// BookingIDFromHoldKey extracts the booking id from an expired hold key.
func BookingIDFromHoldKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, holdPrefix)
	return id, ok && id != ""
}
