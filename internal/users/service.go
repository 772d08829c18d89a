package users

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"resort-booking/internal/logger"
	"resort-booking/internal/models"
	usersredis "resort-booking/internal/users/redis"
	"resort-booking/internal/utils"
)

const (
	otpDigits      = 6
	maxOTPAttempts = 5
)

type DBLayer interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpsertVerifiedUser(ctx context.Context, u *models.User, at time.Time) (*models.User, error)
}

type OTPStore interface {
	StartCooldown(ctx context.Context, email string, cooldown time.Duration) (bool, error)
	ClearCooldown(ctx context.Context, email string) error
	Save(ctx context.Context, email string, entry usersredis.OTPEntry) error
	Get(ctx context.Context, email string) (*usersredis.OTPEntry, error)
	RecordFailure(ctx context.Context, email string, entry *usersredis.OTPEntry) error
	Delete(ctx context.Context, email string) error
}

type OTPMailer interface {
	SendOTP(ctx context.Context, email, name, code string, ttl time.Duration) error
}

type TokenIssuer interface {
	Issue(u *models.User) (string, error)
	TTL() time.Duration
}

type UserService struct {
	DB       DBLayer
	OTP      OTPStore
	Mailer   OTPMailer
	Tokens   TokenIssuer
	Logger   *logger.Logger
	IsAdmin  func(email string) bool
	OTPTTL   time.Duration
	Cooldown time.Duration
	Now      func() time.Time
}

func NewUserService(db DBLayer, otp OTPStore, mailer OTPMailer, tokens TokenIssuer, isAdmin func(string) bool, log *logger.Logger) *UserService {
	return &UserService{
		DB:       db,
		OTP:      otp,
		Mailer:   mailer,
		Tokens:   tokens,
		Logger:   log,
		IsAdmin:  isAdmin,
		OTPTTL:   10 * time.Minute,
		Cooldown: 60 * time.Second,
		Now:      time.Now,
	}
}

// SendOTP emails a fresh login code to email, at most once per cooldown window.
func (s *UserService) SendOTP(ctx context.Context, email, name string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	ok, err := s.OTP.StartCooldown(ctx, email, s.Cooldown)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: wait before requesting another code", models.ErrRateLimited)
	}

	code, err := utils.GenerateOTP(otpDigits)
	if err != nil {
		s.abandonOTP(ctx, email, false)
		return fmt.Errorf("generate otp: %w", err)
	}
	entry := usersredis.OTPEntry{
		Code:      code,
		Name:      strings.TrimSpace(name),
		ExpiresAt: s.Now().Add(s.OTPTTL),
	}
	if err := s.OTP.Save(ctx, email, entry); err != nil {
		s.abandonOTP(ctx, email, false)
		return err
	}

	if err := s.Mailer.SendOTP(ctx, email, entry.Name, code, s.OTPTTL); err != nil {
		s.abandonOTP(ctx, email, true)
		return fmt.Errorf("send otp: %w", err)
	}
	s.Logger.Info("AUTH", fmt.Sprintf("OTP sent to %s", email))
	return nil
}

// abandonOTP undoes a send that never reached the user so they can retry at once.
func (s *UserService) abandonOTP(ctx context.Context, email string, saved bool) {
	ctx = context.WithoutCancel(ctx)
	if saved {
		if err := s.OTP.Delete(ctx, email); err != nil {
			s.Logger.Warn("AUTH", fmt.Sprintf("Failed to drop undelivered OTP for %s: %v", email, err))
		}
	}
	if err := s.OTP.ClearCooldown(ctx, email); err != nil {
		s.Logger.Warn("AUTH", fmt.Sprintf("Failed to clear OTP cooldown for %s: %v", email, err))
	}
}

// VerifyOTP exchanges a valid code for a session token, creating the account on first login.
func (s *UserService) VerifyOTP(ctx context.Context, email, code string) (*models.TokenResponse, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: otp is required", models.ErrValidation)
	}

	entry, err := s.OTP.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if !entry.IsValid(s.Now()) {
		return nil, fmt.Errorf("%w: code expired or not requested", models.ErrUnauthorized)
	}
	if entry.Attempts >= maxOTPAttempts {
		_ = s.OTP.Delete(ctx, email)
		s.Logger.LogSecurity("OTP_LOCKED", fmt.Sprintf("too many attempts for %s", email))
		return nil, fmt.Errorf("%w: too many attempts, request a new code", models.ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) != 1 {
		if err := s.OTP.RecordFailure(ctx, email, entry); err != nil {
			s.Logger.Warn("AUTH", fmt.Sprintf("Failed to record OTP attempt for %s: %v", email, err))
		}
		s.Logger.LogSecurity("OTP_MISMATCH", email)
		return nil, fmt.Errorf("%w: invalid code", models.ErrUnauthorized)
	}
	if err := s.OTP.Delete(ctx, email); err != nil {
		s.Logger.Warn("AUTH", fmt.Sprintf("Failed to delete used OTP for %s: %v", email, err))
	}

	role := models.RoleUser
	if s.IsAdmin != nil && s.IsAdmin(email) {
		role = models.RoleAdmin
	}
	user, err := s.DB.UpsertVerifiedUser(ctx, &models.User{
		ID:       utils.GenerateID(),
		Email:    email,
		FullName: entry.Name,
		Role:     role,
	}, s.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}

	token, err := s.Tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("AUTH", fmt.Sprintf("User %s (%s) logged in", user.Email, user.Role))
	return &models.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int(s.Tokens.TTL().Seconds()),
		TokenType:   "Bearer",
		User:        user,
	}, nil
}

// Me returns the stored account for the caller. Callers authenticated through
// an external provider may have no local row; their claims are returned instead.
func (s *UserService) Me(ctx context.Context, caller *models.Claims) (*models.User, error) {
	if caller == nil {
		return nil, models.ErrUnauthorized
	}
	u, err := s.DB.GetUserByID(ctx, caller.ID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	return &models.User{ID: caller.ID, Email: caller.Email, Role: caller.Role, Verified: true}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: a valid email is required", models.ErrValidation)
	}
	return email, nil
}
