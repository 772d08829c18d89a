package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	otpPrefix      = "otp:"
	cooldownPrefix = "otp_cooldown:"
)

// OTPEntry is a pending login code.
type OTPEntry struct {
	Code      string    `json:"code"`
	Name      string    `json:"name,omitempty"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e *OTPEntry) IsValid(now time.Time) bool {
	return e != nil && e.Code != "" && now.Before(e.ExpiresAt)
}

// OTPStore keeps login codes in Redis, keyed by email, expiring with the code.
type OTPStore struct {
	Client *redis.Client
}

func NewOTPStore(client *redis.Client) *OTPStore {
	return &OTPStore{Client: client}
}

// StartCooldown claims the resend window for email. False means a code was sent too recently.
func (s *OTPStore) StartCooldown(ctx context.Context, email string, cooldown time.Duration) (bool, error) {
	ok, err := s.Client.SetNX(ctx, cooldownPrefix+email, "1", cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set OTP cooldown: %w", err)
	}
	return ok, nil
}

// ClearCooldown lets email request a new code right away.
func (s *OTPStore) ClearCooldown(ctx context.Context, email string) error {
	if err := s.Client.Del(ctx, cooldownPrefix+email).Err(); err != nil {
		return fmt.Errorf("failed to clear OTP cooldown: %w", err)
	}
	return nil
}

// Save replaces any pending code for email.
func (s *OTPStore) Save(ctx context.Context, email string, entry OTPEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal OTP entry: %w", err)
	}
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("OTP entry for %s already expired", email)
	}
	if err := s.Client.Set(ctx, otpPrefix+email, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store OTP in Redis: %w", err)
	}
	return nil
}

// Get returns the pending code for email, or nil when there is none.
func (s *OTPStore) Get(ctx context.Context, email string) (*OTPEntry, error) {
	raw, err := s.Client.Get(ctx, otpPrefix+email).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get OTP from Redis: %w", err)
	}

	var entry OTPEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OTP entry: %w", err)
	}
	return &entry, nil
}

// RecordFailure bumps the attempt counter, keeping the key's remaining TTL.
func (s *OTPStore) RecordFailure(ctx context.Context, email string, entry *OTPEntry) error {
	entry.Attempts++
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, otpPrefix+email, raw, redis.KeepTTL).Err()
}

func (s *OTPStore) Delete(ctx context.Context, email string) error {
	return s.Client.Del(ctx, otpPrefix+email).Err()
}
