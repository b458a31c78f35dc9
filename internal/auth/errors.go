package auth

import "errors"

var (
	// Validation
	ErrFirstNameRequired      = errors.New("first name is required")
	ErrLastNameRequired       = errors.New("last name is required")
	ErrEmailRequired          = errors.New("email is required")
	ErrInvalidEmailFormat     = errors.New("invalid email format")
	ErrPasswordRequired       = errors.New("password is required")
	ErrPasswordTooShort       = errors.New("password must be at least 8 characters")
	ErrPasswordNeedsUppercase = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNeedsDigit     = errors.New("password must contain at least one digit")

	// Login
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email not verified, please check your inbox")
	ErrInvalidOTP         = errors.New("invalid or expired one-time code")

	// Email verification
	ErrInvalidVerificationToken = errors.New("invalid verification token")

	// Password reset
	ErrInvalidResetToken = errors.New("invalid reset token")
	ErrResetTokenExpired = errors.New("reset token has expired")

	// Session tokens
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")

	// Notifier failure on a critical path (verification, OTP, reset delivery).
	ErrEmailDelivery = errors.New("failed to deliver email")
)
