package profile

import (
	"time"

	"github.com/google/uuid"
)

// Roles a profile can hold.
const (
	RoleReader = "reader"
	RoleWriter = "writer"
)

// ValidRole reports whether the role is part of the enumerated set.
func ValidRole(role string) bool {
	return role == RoleReader || role == RoleWriter
}

// Profile is the public-facing metadata for a user, one row per account.
type Profile struct {
	ID     uuid.UUID `json:"profile_id"`
	UserID uuid.UUID `json:"user_id"`

	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	HandleName   *string `json:"handle_name"`
	Nickname     *string `json:"nickname"`
	Pronouns     *string `json:"pronouns"`
	Bio          *string `json:"bio"`
	Gender       *string `json:"gender"`
	ProfileImage *string `json:"profile_image"`

	Role              string `json:"role"`
	TotalBooksRead    int    `json:"total_books_read"`
	TotalBooksWritten int    `json:"total_books_written"`
	IsSuspended       bool   `json:"is_suspended"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateParams are the fields a caller may set when creating a profile.
type CreateParams struct {
	FirstName    *string
	LastName     *string
	HandleName   *string
	Nickname     *string
	Pronouns     *string
	Bio          *string
	Gender       *string
	ProfileImage *string
	Role         string
}

// UpdateParams is the structured partial update: nil fields retain their
// prior value. The field set is the allow-list of what callers may mutate.
type UpdateParams struct {
	FirstName         *string
	LastName          *string
	HandleName        *string
	Nickname          *string
	Pronouns          *string
	Bio               *string
	Gender            *string
	ProfileImage      *string
	Role              *string
	TotalBooksRead    *int
	TotalBooksWritten *int
	IsSuspended       *bool
}

// IsEmpty reports whether the update would touch nothing.
func (p UpdateParams) IsEmpty() bool {
	return p.FirstName == nil &&
		p.LastName == nil &&
		p.HandleName == nil &&
		p.Nickname == nil &&
		p.Pronouns == nil &&
		p.Bio == nil &&
		p.Gender == nil &&
		p.ProfileImage == nil &&
		p.Role == nil &&
		p.TotalBooksRead == nil &&
		p.TotalBooksWritten == nil &&
		p.IsSuspended == nil
}
