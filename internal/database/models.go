package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the bun model for the users table. It carries credential state only;
// public-facing fields live on Profile.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	FirstName    string    `bun:"first_name,notnull"`
	LastName     string    `bun:"last_name,notnull"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	IsVerified   bool      `bun:"is_verified,notnull,default:false"`

	// Single-use tokens; cleared in the same UPDATE that consumes them.
	VerificationToken *string    `bun:"verification_token"`
	ResetToken        *string    `bun:"reset_token"`
	ResetTokenExpires *time.Time `bun:"reset_token_expires"`
	TwoFactorCode     *string    `bun:"two_factor_code"`
	TwoFactorExpires  *time.Time `bun:"two_factor_expires"`

	CreatedAt time.Time `bun:"created_at,notnull,default:now()"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()"`
}

// Profile is the bun model for the user_profiles table. One row per user,
// joined to users by user_id; deleting a profile never touches the user row.
type Profile struct {
	bun.BaseModel `bun:"table:user_profiles,alias:p"`

	ID     uuid.UUID `bun:"profile_id,pk,type:uuid,default:gen_random_uuid()"`
	UserID uuid.UUID `bun:"user_id,notnull,unique,type:uuid"`

	FirstName    *string `bun:"first_name"`
	LastName     *string `bun:"last_name"`
	HandleName   *string `bun:"handle_name,unique"`
	Nickname     *string `bun:"nickname"`
	Pronouns     *string `bun:"pronouns"`
	Bio          *string `bun:"bio"`
	Gender       *string `bun:"gender"`
	ProfileImage *string `bun:"profile_image"`

	Role              string `bun:"role,notnull,default:'reader'"`
	TotalBooksRead    int    `bun:"total_books_read,notnull,default:0"`
	TotalBooksWritten int    `bun:"total_books_written,notnull,default:0"`
	IsSuspended       bool   `bun:"is_suspended,notnull,default:false"`

	CreatedAt time.Time `bun:"created_at,notnull,default:now()"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()"`
}
