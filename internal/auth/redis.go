package auth

import (
	"context"
	"fmt"
	"time"

	"resort-booking/internal/logger"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient connects to Redis and checks the connection. The client backs
// OTP codes and the payment callback lock.
func NewRedisClient(addr, password string, db int, log *logger.Logger) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Error("REDIS", fmt.Sprintf("Failed to connect to Redis at %s: %v", addr, err))
		redisClient.Close()
		return nil, err
	}

	log.Info("REDIS", fmt.Sprintf("Connected to Redis at %s", addr))
	return redisClient, nil
}
