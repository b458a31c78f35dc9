package profile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/aurora-books/aurora-api/internal/logging"
)

var ErrInvalidRole = errors.New("role must be reader or writer")

// Store defines the profile persistence the service depends on.
// Implemented by *Repository.
type Store interface {
	Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*Profile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	GetByID(ctx context.Context, profileID uuid.UUID) (*Profile, error)
	UpdateByUserID(ctx context.Context, userID uuid.UUID, params UpdateParams) (*Profile, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// ImageStore persists uploaded images and returns durable URLs.
// Implemented by *storage.S3ImageStore.
type ImageStore interface {
	Upload(ctx context.Context, contentType string, body io.Reader) (string, error)
}

// Notifier sends the farewell mail after a profile is deleted.
// Implemented by *email.Service.
type Notifier interface {
	SendGoodbyeEmail(ctx context.Context, toEmail, name string) error
}

// TaskQueue accepts best-effort background work. Implemented by *email.Dispatcher.
type TaskQueue interface {
	Enqueue(description string, task func(ctx context.Context) error)
}

// ImageUpload is an incoming image file.
type ImageUpload struct {
	ContentType string
	Body        io.Reader
}

// Service orchestrates profile CRUD, delegating image persistence to the
// image store and farewell notifications to the queue.
type Service struct {
	profiles Store
	images   ImageStore
	notifier Notifier
	queue    TaskQueue
	logger   *logging.Logger
}

func NewService(profiles Store, images ImageStore, notifier Notifier, queue TaskQueue, logger *logging.Logger) *Service {
	return &Service{
		profiles: profiles,
		images:   images,
		notifier: notifier,
		queue:    queue,
		logger:   logger,
	}
}

// Create persists a new profile for the owner. The image, when present, is
// uploaded first and stored as an opaque URL.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, params CreateParams, image *ImageUpload) (*Profile, error) {
	if params.Role == "" {
		params.Role = RoleReader
	}
	if !ValidRole(params.Role) {
		return nil, ErrInvalidRole
	}

	if image != nil {
		url, err := s.images.Upload(ctx, image.ContentType, image.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to store profile image: %w", err)
		}
		params.ProfileImage = &url
	}

	created, err := s.profiles.Create(ctx, userID, params)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrHandleTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return created, nil
}

// GetOwn returns the caller's profile.
func (s *Service) GetOwn(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return s.profiles.GetByUserID(ctx, userID)
}

// GetByID returns any profile by its identifier.
func (s *Service) GetByID(ctx context.Context, profileID uuid.UUID) (*Profile, error) {
	return s.profiles.GetByID(ctx, profileID)
}

// Update applies a partial update to the caller's profile. The image is
// replaced only when a new one is supplied.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, params UpdateParams, image *ImageUpload) (*Profile, error) {
	if params.Role != nil && !ValidRole(*params.Role) {
		return nil, ErrInvalidRole
	}

	if image != nil {
		url, err := s.images.Upload(ctx, image.ContentType, image.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to store profile image: %w", err)
		}
		params.ProfileImage = &url
	}

	updated, err := s.profiles.UpdateByUserID(ctx, userID, params)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrHandleTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return updated, nil
}

// Delete removes the caller's profile and queues a farewell email. The send
// is best-effort; its failure never affects the deletion outcome.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID, ownerEmail string) error {
	existing, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.profiles.DeleteByUserID(ctx, userID); err != nil {
		return err
	}

	name := ownerEmail
	if existing.FirstName != nil && *existing.FirstName != "" {
		name = *existing.FirstName
	}

	s.queue.Enqueue("goodbye email", func(ctx context.Context) error {
		return s.notifier.SendGoodbyeEmail(ctx, ownerEmail, name)
	})

	return nil
}
