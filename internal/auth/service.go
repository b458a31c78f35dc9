package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/aurora-books/aurora-api/internal/logging"
	"github.com/aurora-books/aurora-api/internal/user"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters - tuned for security vs performance balance
// Time: 3, Memory: 64MB, Threads: 4, KeyLen: 32 bytes
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

const (
	otpTTL        = 5 * time.Minute
	resetTokenTTL = 1 * time.Hour
)

// Session is the result of a completed two-factor login.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Service handles the account lifecycle: registration, email verification,
// two-step login and password reset.
type Service struct {
	users           UserStore
	tokenService    TokenService
	mailer          Mailer
	queue           TaskQueue
	logger          *logging.Logger
	sessionDuration time.Duration
}

func NewService(
	users UserStore,
	tokenService TokenService,
	mailer Mailer,
	queue TaskQueue,
	logger *logging.Logger,
	sessionDuration time.Duration,
) *Service {
	return &Service{
		users:           users,
		tokenService:    tokenService,
		mailer:          mailer,
		queue:           queue,
		logger:          logger,
		sessionDuration: sessionDuration,
	}
}

// Register creates a new unverified user and sends the verification email.
// The email send is on the critical path: the user cannot proceed without the
// link, so a delivery failure fails the signup. The created row is kept; a
// resend recovers it.
func (s *Service) Register(ctx context.Context, firstName, lastName, email, password string) (*user.User, error) {
	if strings.TrimSpace(firstName) == "" {
		return nil, ErrFirstNameRequired
	}
	if strings.TrimSpace(lastName) == "" {
		return nil, ErrLastNameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(email) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmailFormat
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	passwordHash, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	newUser, err := s.users.Create(ctx, firstName, lastName, email, passwordHash, verificationToken)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, email, firstName, verificationToken); err != nil {
		s.logger.Error("failed to send verification email", "email", email, "error", err)
		return nil, fmt.Errorf("%w: verification email", ErrEmailDelivery)
	}

	return newUser, nil
}

// VerifyAccount marks the account holding the token as verified. The token is
// cleared in the same statement, so a second call with the same token fails.
// The welcome email is best-effort and queued off the request path.
func (s *Service) VerifyAccount(ctx context.Context, token string) error {
	existingUser, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidVerificationToken
		}
		return fmt.Errorf("failed to find user by token: %w", err)
	}

	if err := s.users.MarkVerified(ctx, existingUser.ID); err != nil {
		return fmt.Errorf("failed to verify account: %w", err)
	}

	toEmail, name := existingUser.Email, existingUser.FirstName
	s.queue.Enqueue("welcome email", func(ctx context.Context) error {
		return s.mailer.SendWelcomeEmail(ctx, toEmail, name)
	})

	return nil
}

// Login is the first authentication factor. On valid credentials for a
// verified account it stores a short-lived one-time code and emails it; the
// session is only issued by VerifyTwoFactor.
func (s *Service) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return ErrInvalidCredentials
	}

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !s.verifyPassword(existingUser.PasswordHash, password) {
		return ErrInvalidCredentials
	}

	if !existingUser.IsVerified {
		return ErrEmailNotVerified
	}

	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("failed to generate one-time code: %w", err)
	}

	expiresAt := time.Now().Add(otpTTL)
	if err := s.users.SetTwoFactorCode(ctx, existingUser.ID, code, expiresAt); err != nil {
		return fmt.Errorf("failed to store one-time code: %w", err)
	}

	// OTP delivery is the critical path: without the code the login cannot
	// complete, so a send failure fails the request.
	if err := s.mailer.SendOTPEmail(ctx, email, existingUser.FirstName, code); err != nil {
		s.logger.Error("failed to send one-time code", "email", email, "error", err)
		return fmt.Errorf("%w: one-time code", ErrEmailDelivery)
	}

	return nil
}

// VerifyTwoFactor checks the one-time code and, on success, clears it and
// issues the session token.
func (s *Service) VerifyTwoFactor(ctx context.Context, email, code string) (*Session, error) {
	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidOTP
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if existingUser.TwoFactorCode == nil || existingUser.TwoFactorExpires == nil {
		return nil, ErrInvalidOTP
	}
	if subtle.ConstantTimeCompare([]byte(*existingUser.TwoFactorCode), []byte(code)) != 1 {
		return nil, ErrInvalidOTP
	}
	if time.Now().After(*existingUser.TwoFactorExpires) {
		return nil, ErrInvalidOTP
	}

	// Single use: the code is gone before the session is handed out.
	if err := s.users.ClearTwoFactorCode(ctx, existingUser.ID); err != nil {
		return nil, fmt.Errorf("failed to clear one-time code: %w", err)
	}

	accessToken, err := s.tokenService.CreateToken(existingUser.ID, existingUser.Email, s.sessionDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return &Session{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.sessionDuration.Seconds()),
	}, nil
}

// RequestPasswordReset stores a reset token with a one-hour expiry and emails
// it. An unknown address returns nil so the endpoint cannot be used to probe
// which emails are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		s.logger.Warn("failed to get user for password reset", "error", err)
		return nil
	}

	token, err := generateRandomToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	expiresAt := time.Now().Add(resetTokenTTL)
	if err := s.users.SetResetToken(ctx, existingUser.ID, token, expiresAt); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, email, existingUser.FirstName, token); err != nil {
		s.logger.Error("failed to send password reset email", "email", email, "error", err)
		return fmt.Errorf("%w: password reset email", ErrEmailDelivery)
	}

	return nil
}

// ResetPassword validates the reset token and its expiry, then stores the new
// password hash. The token pair is cleared in the same statement as the
// password update.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if existingUser.ResetToken == nil || existingUser.ResetTokenExpires == nil {
		return ErrInvalidResetToken
	}
	if subtle.ConstantTimeCompare([]byte(*existingUser.ResetToken), []byte(token)) != 1 {
		return ErrInvalidResetToken
	}
	if time.Now().After(*existingUser.ResetTokenExpires) {
		return ErrResetTokenExpired
	}

	passwordHash, err := s.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, existingUser.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// ResendVerificationEmail regenerates the verification token for an
// unverified account and queues a new email. Always returns nil so the
// endpoint cannot be used to probe which emails are registered.
func (s *Service) ResendVerificationEmail(ctx context.Context, email string) error {
	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for resend verification", "error", err)
		}
		return nil
	}

	if existingUser.IsVerified {
		return nil
	}

	token, err := generateRandomToken()
	if err != nil {
		s.logger.Warn("failed to generate verification token", "error", err)
		return nil
	}

	if err := s.users.UpdateVerificationToken(ctx, existingUser.ID, token); err != nil {
		s.logger.Warn("failed to update verification token", "error", err)
		return nil
	}

	toEmail, name := existingUser.Email, existingUser.FirstName
	s.queue.Enqueue("verification email resend", func(ctx context.Context) error {
		return s.mailer.SendVerificationEmail(ctx, toEmail, name, token)
	})

	return nil
}

// validatePassword enforces the strength policy: minimum length 8, at least
// one uppercase letter, at least one digit.
func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < 8 {
		return ErrPasswordTooShort
	}

	var hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		return ErrPasswordNeedsUppercase
	}
	if !hasDigit {
		return ErrPasswordNeedsDigit
	}

	return nil
}

// hashPassword creates an argon2id hash of the password.
func (s *Service) hashPassword(password string) (string, error) {
	// Generate random salt
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		argon2Time,
		argon2Memory,
		argon2Threads,
		argon2KeyLen,
	)

	// Encode as: $argon2id$v=19$m=65536,t=3,p=4$salt$hash
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		encodedSalt,
		encodedHash,
	), nil
}

// verifyPassword checks if a password matches the stored hash.
func (s *Service) verifyPassword(encodedHash, password string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}

	var version int
	var memory, time uint32
	var threads uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads)
	if err != nil {
		return false
	}
	_, err = fmt.Sscanf(parts[2], "v=%d", &version)
	if err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	inputHash := argon2.IDKey(
		[]byte(password),
		salt,
		time,
		memory,
		threads,
		uint32(len(decodedHash)),
	)

	return subtle.ConstantTimeCompare(decodedHash, inputHash) == 1
}
