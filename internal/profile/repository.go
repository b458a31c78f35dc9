package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/aurora-books/aurora-api/internal/database"
)

var (
	ErrNotFound      = errors.New("profile not found")
	ErrAlreadyExists = errors.New("profile already exists for this user")
	ErrHandleTaken   = errors.New("handle is already taken")
)

const uniqueViolation = "23505"

// Repository handles profile persistence.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new profile. Uniqueness races (one profile per user, global
// handle) are settled by the schema constraints; the loser gets the conflict
// error mapped from the violated constraint, never from a prior read.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*Profile, error) {
	dbProfile := &database.Profile{
		UserID:       userID,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		HandleName:   params.HandleName,
		Nickname:     params.Nickname,
		Pronouns:     params.Pronouns,
		Bio:          params.Bio,
		Gender:       params.Gender,
		ProfileImage: params.ProfileImage,
		Role:         params.Role,
	}

	_, err := r.db.NewInsert().
		Model(dbProfile).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if conflictErr := mapConflict(err); conflictErr != nil {
			return nil, conflictErr
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return mapDBProfileToModel(dbProfile), nil
}

// GetByUserID retrieves the profile owned by the user.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	dbProfile := new(database.Profile)
	err := r.db.NewSelect().
		Model(dbProfile).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile by user id: %w", err)
	}

	return mapDBProfileToModel(dbProfile), nil
}

// GetByID retrieves a profile by its own identifier.
func (r *Repository) GetByID(ctx context.Context, profileID uuid.UUID) (*Profile, error) {
	dbProfile := new(database.Profile)
	err := r.db.NewSelect().
		Model(dbProfile).
		Where("profile_id = ?", profileID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile by id: %w", err)
	}

	return mapDBProfileToModel(dbProfile), nil
}

// UpdateByUserID applies a partial update; nil fields are left untouched.
func (r *Repository) UpdateByUserID(ctx context.Context, userID uuid.UUID, params UpdateParams) (*Profile, error) {
	if params.IsEmpty() {
		return r.GetByUserID(ctx, userID)
	}

	dbProfile := new(database.Profile)
	q := r.db.NewUpdate().
		Model(dbProfile).
		Where("user_id = ?", userID).
		Set("updated_at = now()").
		Returning("*")

	if params.FirstName != nil {
		q = q.Set("first_name = ?", *params.FirstName)
	}
	if params.LastName != nil {
		q = q.Set("last_name = ?", *params.LastName)
	}
	if params.HandleName != nil {
		q = q.Set("handle_name = ?", *params.HandleName)
	}
	if params.Nickname != nil {
		q = q.Set("nickname = ?", *params.Nickname)
	}
	if params.Pronouns != nil {
		q = q.Set("pronouns = ?", *params.Pronouns)
	}
	if params.Bio != nil {
		q = q.Set("bio = ?", *params.Bio)
	}
	if params.Gender != nil {
		q = q.Set("gender = ?", *params.Gender)
	}
	if params.ProfileImage != nil {
		q = q.Set("profile_image = ?", *params.ProfileImage)
	}
	if params.Role != nil {
		q = q.Set("role = ?", *params.Role)
	}
	if params.TotalBooksRead != nil {
		q = q.Set("total_books_read = ?", *params.TotalBooksRead)
	}
	if params.TotalBooksWritten != nil {
		q = q.Set("total_books_written = ?", *params.TotalBooksWritten)
	}
	if params.IsSuspended != nil {
		q = q.Set("is_suspended = ?", *params.IsSuspended)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if conflictErr := mapConflict(err); conflictErr != nil {
			return nil, conflictErr
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return mapDBProfileToModel(dbProfile), nil
}

// DeleteByUserID removes the user's profile row. The user row is untouched.
func (r *Repository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*database.Profile)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapConflict translates a pq unique violation into the matching sentinel.
func mapConflict(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}

	switch pqErr.Constraint {
	case "user_profiles_handle_name_key":
		return ErrHandleTaken
	case "user_profiles_user_id_key":
		return ErrAlreadyExists
	default:
		return nil
	}
}

func mapDBProfileToModel(dbp *database.Profile) *Profile {
	return &Profile{
		ID:                dbp.ID,
		UserID:            dbp.UserID,
		FirstName:         dbp.FirstName,
		LastName:          dbp.LastName,
		HandleName:        dbp.HandleName,
		Nickname:          dbp.Nickname,
		Pronouns:          dbp.Pronouns,
		Bio:               dbp.Bio,
		Gender:            dbp.Gender,
		ProfileImage:      dbp.ProfileImage,
		Role:              dbp.Role,
		TotalBooksRead:    dbp.TotalBooksRead,
		TotalBooksWritten: dbp.TotalBooksWritten,
		IsSuspended:       dbp.IsSuspended,
		CreatedAt:         dbp.CreatedAt,
		UpdatedAt:         dbp.UpdatedAt,
	}
}
