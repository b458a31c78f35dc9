package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aurora-books/aurora-api/internal/user"
)

// UserStore defines the credential persistence the service depends on.
// Implemented by *user.Repository.
type UserStore interface {
	Create(ctx context.Context, firstName, lastName, email, passwordHash, verificationToken string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*user.User, error)
	MarkVerified(ctx context.Context, userID uuid.UUID) error
	UpdateVerificationToken(ctx context.Context, userID uuid.UUID, token string) error
	SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetTwoFactorCode(ctx context.Context, userID uuid.UUID, code string, expiresAt time.Time) error
	ClearTwoFactorCode(ctx context.Context, userID uuid.UUID) error
}

// Mailer defines the email sends the account lifecycle needs.
// Implemented by *email.Service.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, toEmail, name, token string) error
	SendOTPEmail(ctx context.Context, toEmail, name, code string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, name, token string) error
	SendWelcomeEmail(ctx context.Context, toEmail, name string) error
}

// TaskQueue accepts best-effort background work (welcome emails and similar
// sends whose failure must not fail the request). Implemented by
// *email.Dispatcher.
type TaskQueue interface {
	Enqueue(description string, task func(ctx context.Context) error)
}

// TokenService defines session token creation and validation.
// Implemented by *PasetoService.
type TokenService interface {
	CreateToken(userID uuid.UUID, email string, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}
