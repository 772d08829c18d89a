package redis

import (
	"context"
	"fmt"
	"time"

	"resort-booking/internal/logger"

	"github.com/go-redis/redis/v8"
)

const paymentLockPrefix = "payment_lock:"

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PaymentLock serializes checkout callbacks and refund decisions for one gateway order.
type PaymentLock struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewPaymentLock(client *redis.Client, ttl time.Duration, log *logger.Logger) *PaymentLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PaymentLock{Client: client, TTL: ttl, Logger: log}
}

// Acquire takes the lock for orderID on behalf of token. False means another
// callback for the same order is in flight.
func (l *PaymentLock) Acquire(ctx context.Context, orderID, token string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, paymentLockPrefix+orderID, token, l.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock %s: %w", orderID, err)
	}
	if !ok {
		l.Logger.Warn("REDIS", fmt.Sprintf("Payment lock for order %s already held", orderID))
	}
	return ok, nil
}

// Release drops the lock if token still owns it. An expired or foreign lock is left alone.
func (l *PaymentLock) Release(ctx context.Context, orderID, token string) error {
	if err := releaseScript.Run(ctx, l.Client, []string{paymentLockPrefix + orderID}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis unlock %s: %w", orderID, err)
	}
	return nil
}
