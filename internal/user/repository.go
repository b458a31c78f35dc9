package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/aurora-books/aurora-api/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

const uniqueViolation = "23505"

// Repository handles user credential persistence.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new unverified user. A unique violation on the email
// constraint is mapped to ErrDuplicateEmail so concurrent signups with the
// same address are resolved by the store, not by a prior read.
func (r *Repository) Create(ctx context.Context, firstName, lastName, email, passwordHash, verificationToken string) (*User, error) {
	dbUser := &database.User{
		FirstName:         firstName,
		LastName:          lastName,
		Email:             email,
		PasswordHash:      passwordHash,
		VerificationToken: &verificationToken,
		IsVerified:        false,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByVerificationToken retrieves the unverified user holding the token.
func (r *Repository) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("verification_token = ?", token).
		Where("is_verified = ?", false).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by verification token: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// MarkVerified sets the verified flag and clears the verification token in a
// single statement, making the token single-use.
func (r *Repository) MarkVerified(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("is_verified = ?", true).
		Set("verification_token = NULL").
		Set("updated_at = now()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to mark user as verified: %w", err)
	}

	return requireRowsAffected(result)
}

// UpdateVerificationToken regenerates the verification token for resends.
func (r *Repository) UpdateVerificationToken(ctx context.Context, userID uuid.UUID, token string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("verification_token = ?", token).
		Set("updated_at = now()").
		Where("id = ?", userID).
		Where("is_verified = ?", false).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update verification token: %w", err)
	}

	return requireRowsAffected(result)
}

// SetResetToken stores the password reset token and its expiry.
func (r *Repository) SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("reset_token = ?", token).
		Set("reset_token_expires = ?", expiresAt).
		Set("updated_at = now()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}

	return requireRowsAffected(result)
}

// UpdatePassword stores a new password hash and clears the reset token pair,
// so a reset token can never be replayed.
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_token = NULL").
		Set("reset_token_expires = NULL").
		Set("updated_at = now()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireRowsAffected(result)
}

// SetTwoFactorCode stores a login one-time code and its expiry.
func (r *Repository) SetTwoFactorCode(ctx context.Context, userID uuid.UUID, code string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("two_factor_code = ?", code).
		Set("two_factor_expires = ?", expiresAt).
		Set("updated_at = now()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set two-factor code: %w", err)
	}

	return requireRowsAffected(result)
}

// ClearTwoFactorCode removes the stored one-time code after a successful
// second-factor verification.
func (r *Repository) ClearTwoFactorCode(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("two_factor_code = NULL").
		Set("two_factor_expires = NULL").
		Set("updated_at = now()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to clear two-factor code: %w", err)
	}

	return requireRowsAffected(result)
}

func requireRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// mapDBUserToModel converts the database model to the domain model.
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:                dbu.ID,
		FirstName:         dbu.FirstName,
		LastName:          dbu.LastName,
		Email:             dbu.Email,
		PasswordHash:      dbu.PasswordHash,
		IsVerified:        dbu.IsVerified,
		VerificationToken: dbu.VerificationToken,
		ResetToken:        dbu.ResetToken,
		ResetTokenExpires: dbu.ResetTokenExpires,
		TwoFactorCode:     dbu.TwoFactorCode,
		TwoFactorExpires:  dbu.TwoFactorExpires,
		CreatedAt:         dbu.CreatedAt,
		UpdatedAt:         dbu.UpdatedAt,
	}
}
