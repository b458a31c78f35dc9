package profile

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aurora-books/aurora-api/internal/auth"
	"github.com/aurora-books/aurora-api/internal/httputil"
	"github.com/aurora-books/aurora-api/internal/logging"
	"github.com/aurora-books/aurora-api/internal/storage"
)

const maxUploadBytes = 10 << 20 // 10 MB

// Handler contains HTTP handlers for profile CRUD.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// createRequest is the JSON body variant of profile creation.
type createRequest struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	HandleName *string `json:"handle_name"`
	Nickname   *string `json:"nickname"`
	Pronouns   *string `json:"pronouns"`
	Bio        *string `json:"bio"`
	Gender     *string `json:"gender"`
	Role       string  `json:"role"`
}

// updateRequest is the JSON body variant of a partial update.
type updateRequest struct {
	FirstName         *string `json:"first_name"`
	LastName          *string `json:"last_name"`
	HandleName        *string `json:"handle_name"`
	Nickname          *string `json:"nickname"`
	Pronouns          *string `json:"pronouns"`
	Bio               *string `json:"bio"`
	Gender            *string `json:"gender"`
	Role              *string `json:"role"`
	TotalBooksRead    *int    `json:"total_books_read"`
	TotalBooksWritten *int    `json:"total_books_written"`
	IsSuspended       *bool   `json:"is_suspended"`
}

// Create handles POST /profile. Accepts multipart/form-data (fields plus an
// optional profile_image file) or a plain JSON body without an image.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var params CreateParams
	var image *ImageUpload

	if isMultipart(r) {
		var err error
		params, image, err = parseCreateForm(r)
		if err != nil {
			logger.Warn("invalid create profile form", "error", err.Error())
			respondFormError(w, err)
			return
		}
		if image != nil {
			defer closeUpload(image)
		}
	} else {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("invalid create profile request body", "error", err.Error())
			httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
			return
		}
		params = CreateParams{
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			HandleName: req.HandleName,
			Nickname:   req.Nickname,
			Pronouns:   req.Pronouns,
			Bio:        req.Bio,
			Gender:     req.Gender,
			Role:       req.Role,
		}
	}

	created, err := h.service.Create(r.Context(), userID, params, image)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyExists):
			logger.Warn("create profile failed: profile exists", "user_id", userID)
			httputil.RespondErrorWithCode(w, "profile already exists for this user", httputil.CodeProfileExists, http.StatusConflict)
		case errors.Is(err, ErrHandleTaken):
			logger.Warn("create profile failed: handle taken")
			httputil.RespondErrorWithCode(w, "handle is already taken", httputil.CodeHandleTaken, http.StatusConflict)
		case errors.Is(err, ErrInvalidRole):
			logger.Warn("create profile failed: invalid role")
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		case errors.Is(err, storage.ErrUnsupportedFormat):
			logger.Warn("create profile failed: unsupported image format")
			httputil.RespondErrorWithCode(w, "unsupported image format", httputil.CodeInvalidImage, http.StatusBadRequest)
		default:
			logger.Error("create profile failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to create profile", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("profile created", "user_id", userID, "profile_id", created.ID)

	httputil.RespondJSON(w, created, http.StatusCreated)
}

// GetMe handles GET /profile/me.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	p, err := h.service.GetOwn(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, "profile not found", httputil.CodeProfileNotFound, http.StatusNotFound)
			return
		}
		logger.Error("get own profile failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to fetch profile", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, p, http.StatusOK)
}

// GetByID handles GET /profile/{profileID} (public).
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	profileID, err := uuid.Parse(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid profile id", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	p, err := h.service.GetByID(r.Context(), profileID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, "profile not found", httputil.CodeProfileNotFound, http.StatusNotFound)
			return
		}
		logger.Error("get profile failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to fetch profile", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, p, http.StatusOK)
}

// Update handles PUT /profile. Same body variants as Create; unspecified
// fields keep their prior value, the image is replaced only when supplied.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var params UpdateParams
	var image *ImageUpload

	if isMultipart(r) {
		var err error
		params, image, err = parseUpdateForm(r)
		if err != nil {
			logger.Warn("invalid update profile form", "error", err.Error())
			respondFormError(w, err)
			return
		}
		if image != nil {
			defer closeUpload(image)
		}
	} else {
		var req updateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("invalid update profile request body", "error", err.Error())
			httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
			return
		}
		params = UpdateParams{
			FirstName:         req.FirstName,
			LastName:          req.LastName,
			HandleName:        req.HandleName,
			Nickname:          req.Nickname,
			Pronouns:          req.Pronouns,
			Bio:               req.Bio,
			Gender:            req.Gender,
			Role:              req.Role,
			TotalBooksRead:    req.TotalBooksRead,
			TotalBooksWritten: req.TotalBooksWritten,
			IsSuspended:       req.IsSuspended,
		}
	}

	updated, err := h.service.Update(r.Context(), userID, params, image)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			logger.Warn("update profile failed: not found", "user_id", userID)
			httputil.RespondErrorWithCode(w, "profile not found", httputil.CodeProfileNotFound, http.StatusNotFound)
		case errors.Is(err, ErrHandleTaken):
			logger.Warn("update profile failed: handle taken")
			httputil.RespondErrorWithCode(w, "handle is already taken", httputil.CodeHandleTaken, http.StatusConflict)
		case errors.Is(err, ErrInvalidRole):
			logger.Warn("update profile failed: invalid role")
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		case errors.Is(err, storage.ErrUnsupportedFormat):
			logger.Warn("update profile failed: unsupported image format")
			httputil.RespondErrorWithCode(w, "unsupported image format", httputil.CodeInvalidImage, http.StatusBadRequest)
		default:
			logger.Error("update profile failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to update profile", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("profile updated", "user_id", userID)

	httputil.RespondJSON(w, updated, http.StatusOK)
}

// Delete handles DELETE /profile.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}
	email, _ := auth.GetUserEmailFromContext(r.Context())

	if err := h.service.Delete(r.Context(), userID, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Warn("delete profile failed: not found", "user_id", userID)
			httputil.RespondErrorWithCode(w, "profile not found", httputil.CodeProfileNotFound, http.StatusNotFound)
			return
		}
		logger.Error("delete profile failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to delete profile", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("profile deleted", "user_id", userID)

	httputil.RespondJSON(w, map[string]string{"message": "Profile deleted successfully."}, http.StatusOK)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

var errBadForm = errors.New("invalid form data")

func respondFormError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrUnsupportedFormat) {
		httputil.RespondErrorWithCode(w, "unsupported image format", httputil.CodeInvalidImage, http.StatusBadRequest)
		return
	}
	httputil.RespondErrorWithCode(w, "invalid form data", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
}

func parseCreateForm(r *http.Request) (CreateParams, *ImageUpload, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return CreateParams{}, nil, errBadForm
	}

	params := CreateParams{
		FirstName:  formPtr(r, "first_name"),
		LastName:   formPtr(r, "last_name"),
		HandleName: formPtr(r, "handle_name"),
		Nickname:   formPtr(r, "nickname"),
		Pronouns:   formPtr(r, "pronouns"),
		Bio:        formPtr(r, "bio"),
		Gender:     formPtr(r, "gender"),
		Role:       r.FormValue("role"),
	}

	image, err := formImage(r)
	if err != nil {
		return CreateParams{}, nil, err
	}

	return params, image, nil
}

func parseUpdateForm(r *http.Request) (UpdateParams, *ImageUpload, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return UpdateParams{}, nil, errBadForm
	}

	params := UpdateParams{
		FirstName:  formPtr(r, "first_name"),
		LastName:   formPtr(r, "last_name"),
		HandleName: formPtr(r, "handle_name"),
		Nickname:   formPtr(r, "nickname"),
		Pronouns:   formPtr(r, "pronouns"),
		Bio:        formPtr(r, "bio"),
		Gender:     formPtr(r, "gender"),
		Role:       formPtr(r, "role"),
	}

	if v := formPtr(r, "total_books_read"); v != nil {
		n, err := strconv.Atoi(*v)
		if err != nil {
			return UpdateParams{}, nil, errBadForm
		}
		params.TotalBooksRead = &n
	}
	if v := formPtr(r, "total_books_written"); v != nil {
		n, err := strconv.Atoi(*v)
		if err != nil {
			return UpdateParams{}, nil, errBadForm
		}
		params.TotalBooksWritten = &n
	}
	if v := formPtr(r, "is_suspended"); v != nil {
		b, err := strconv.ParseBool(*v)
		if err != nil {
			return UpdateParams{}, nil, errBadForm
		}
		params.IsSuspended = &b
	}

	image, err := formImage(r)
	if err != nil {
		return UpdateParams{}, nil, err
	}

	return params, image, nil
}

// formPtr returns the field value, or nil when the field was not sent at all.
// An empty string is a deliberate clear, so presence matters.
func formPtr(r *http.Request, name string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[name]
	if !ok || len(values) == 0 {
		return nil
	}
	v := strings.TrimSpace(values[0])
	return &v
}

func formImage(r *http.Request) (*ImageUpload, error) {
	file, header, err := r.FormFile("profile_image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, errBadForm
	}

	contentType := header.Header.Get("Content-Type")
	if !storage.IsAllowedContentType(contentType) {
		file.Close()
		return nil, storage.ErrUnsupportedFormat
	}

	return &ImageUpload{ContentType: contentType, Body: file}, nil
}

func closeUpload(image *ImageUpload) {
	if closer, ok := image.Body.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
