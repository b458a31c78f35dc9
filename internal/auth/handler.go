package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aurora-books/aurora-api/internal/httputil"
	"github.com/aurora-books/aurora-api/internal/logging"
	"github.com/aurora-books/aurora-api/internal/ratelimit"
	"github.com/aurora-books/aurora-api/internal/user"
)

// Handler contains HTTP handlers for the account lifecycle endpoints.
type Handler struct {
	service     *Service
	rateLimiter *ratelimit.Limiter
	logger      *logging.Logger
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, logger *logging.Logger) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// SignupRequest represents the registration request body.
type SignupRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// LoginRequest represents the first-factor login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyTwoFactorRequest represents the second-factor request body.
type VerifyTwoFactorRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ForgotPasswordRequest represents the password reset request.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the password reset confirmation.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResendVerificationRequest represents the resend verification email request.
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// SignupResponse represents the registration response.
type SignupResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message"`
}

// Signup handles user registration.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "signup")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for signup", "ip", ip)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signup request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "signup"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	newUser, err := h.service.Register(r.Context(), req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			logger.Warn("signup failed: email already exists")
			respondError(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusConflict)
			return
		}
		if isValidationError(err) {
			logger.Warn("signup failed: validation error", "error", err.Error())
			respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrEmailDelivery) {
			logger.Error("signup failed: verification email undeliverable")
			respondError(w, "could not send verification email, please try again", httputil.CodeEmailDeliveryFailed, http.StatusBadGateway)
			return
		}
		logger.Error("signup failed: internal error", "error", err.Error())
		respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	respondJSON(w, SignupResponse{
		User:    UserResponse{ID: newUser.ID, Email: newUser.Email},
		Message: "Registration successful. Please check your email to verify your account.",
	}, http.StatusCreated)
}

// Login handles the first authentication factor and issues the one-time code.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "login")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for login", "ip", ip)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "login"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	if err := h.service.Login(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			respondError(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		if errors.Is(err, ErrEmailNotVerified) {
			logger.Warn("login failed: email not verified")
			respondError(w, "email not verified, please check your inbox", httputil.CodeEmailNotVerified, http.StatusForbidden)
			return
		}
		if errors.Is(err, ErrEmailDelivery) {
			logger.Error("login failed: one-time code undeliverable")
			respondError(w, "could not send one-time code, please try again", httputil.CodeEmailDeliveryFailed, http.StatusBadGateway)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("one-time code issued")

	respondJSON(w, map[string]string{
		"message": "A one-time code has been sent to your email. It expires in 5 minutes.",
	}, http.StatusOK)
}

// VerifyTwoFactor handles the second authentication factor and returns the session.
func (h *Handler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req VerifyTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid verify-2fa request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	session, err := h.service.VerifyTwoFactor(r.Context(), req.Email, strings.TrimSpace(req.Code))
	if err != nil {
		if errors.Is(err, ErrInvalidOTP) {
			logger.Warn("two-factor verification failed")
			respondError(w, "invalid or expired one-time code", httputil.CodeInvalidOTP, http.StatusUnauthorized)
			return
		}
		logger.Error("two-factor verification failed: internal error", "error", err.Error())
		respondError(w, "failed to verify one-time code", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user logged in successfully")

	respondJSON(w, session, http.StatusOK)
}

// VerifyAccount handles the email verification link.
func (h *Handler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := chi.URLParam(r, "token")
	if token == "" {
		logger.Warn("account verification failed: token missing")
		respondError(w, "verification token required", httputil.CodeVerificationTokenRequired, http.StatusBadRequest)
		return
	}

	if err := h.service.VerifyAccount(r.Context(), token); err != nil {
		if errors.Is(err, ErrInvalidVerificationToken) {
			logger.Warn("account verification failed: invalid token")
			respondError(w, "invalid verification token", httputil.CodeVerificationFailed, http.StatusBadRequest)
			return
		}
		logger.Error("account verification failed: internal error", "error", err.Error())
		respondError(w, "failed to verify account", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("account verified successfully")

	respondJSON(w, map[string]string{
		"message": "Account verified successfully. You can now login.",
	}, http.StatusOK)
}

// ForgotPassword handles password reset requests. The response is uniform
// regardless of whether the account exists.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid forgot password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	ip := getClientIP(r)
	if !h.allowEmailSend(w, r, ip, req.Email, logger) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, ErrEmailDelivery) {
			logger.Error("forgot password failed: reset email undeliverable")
			respondError(w, "could not send reset email, please try again", httputil.CodeEmailDeliveryFailed, http.StatusBadGateway)
			return
		}
		logger.Error("forgot password failed: internal error", "error", err.Error())
		respondError(w, "failed to process request", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]string{
		"message": "If an account exists with that email, a password reset link has been sent.",
	}, http.StatusOK)
}

// ResetPassword handles password reset with token.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Email, strings.TrimSpace(req.Token), req.NewPassword)
	if err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			logger.Warn("password reset failed: invalid token")
			respondError(w, "invalid reset token", httputil.CodeInvalidResetToken, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrResetTokenExpired) {
			logger.Warn("password reset failed: token expired")
			respondError(w, "reset token has expired, please request a new one", httputil.CodeResetTokenExpired, http.StatusBadRequest)
			return
		}
		if isValidationError(err) {
			logger.Warn("password reset failed: validation error", "error", err.Error())
			respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
			return
		}
		logger.Error("password reset failed: internal error", "error", err.Error())
		respondError(w, "failed to reset password", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("password reset successfully")

	respondJSON(w, map[string]string{
		"message": "Password reset successfully. You can now login with your new password.",
	}, http.StatusOK)
}

// ResendVerification handles resending the verification email. The response
// is uniform regardless of whether the account exists.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid resend verification request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	ip := getClientIP(r)
	if !h.allowEmailSend(w, r, ip, req.Email, logger) {
		return
	}

	_ = h.service.ResendVerificationEmail(r.Context(), req.Email)

	respondJSON(w, map[string]string{
		"message": "If your email is registered and not verified, a new verification link has been sent.",
	}, http.StatusOK)
}

// allowEmailSend applies the shared IP rate limit and per-email cooldown for
// endpoints that trigger outbound mail. It writes the error response itself
// and reports whether the request may proceed.
func (h *Handler) allowEmailSend(w http.ResponseWriter, r *http.Request, ip, email string, logger *logging.Logger) bool {
	exceeded, err := h.rateLimiter.CheckIPRateLimit(r.Context(), ip)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return false
	}

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
	} else if onCooldown {
		logger.Warn("email on cooldown", "email", email)
		respondError(w, "please wait before requesting another email", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return false
	}

	if err := h.rateLimiter.RecordIPRequest(r.Context(), ip); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	if err := h.rateLimiter.SetEmailCooldown(r.Context(), email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}

	return true
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		ErrFirstNameRequired,
		ErrLastNameRequired,
		ErrEmailRequired,
		ErrInvalidEmailFormat,
		ErrPasswordRequired,
		ErrPasswordTooShort,
		ErrPasswordNeedsUppercase,
		ErrPasswordNeedsDigit,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr format is "IP:port", extract just the IP
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
