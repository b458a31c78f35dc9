package httputil

// Machine-readable error codes returned alongside error messages so clients
// can branch without parsing human-readable text.
const (
	CodeInvalidRequestBody = "invalid_request_body"
	CodeInternalError      = "internal_error"
	CodeTooManyRequests    = "too_many_requests"
	CodeCooldownActive     = "cooldown_active"

	// Registration and validation
	CodeValidationFailed   = "validation_failed"
	CodeEmailAlreadyExists = "email_already_exists"

	// Login and sessions
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailNotVerified   = "email_not_verified"
	CodeInvalidOTP         = "invalid_otp"
	CodeMissingAuth        = "missing_auth"
	CodeInvalidAuthHeader  = "invalid_auth_header"
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"

	// Email verification and password reset
	CodeVerificationTokenRequired = "verification_token_required"
	CodeVerificationFailed        = "verification_failed"
	CodeInvalidResetToken         = "invalid_reset_token"
	CodeResetTokenExpired         = "reset_token_expired"
	CodeEmailDeliveryFailed       = "email_delivery_failed"

	// Profiles
	CodeProfileExists   = "profile_exists"
	CodeProfileNotFound = "profile_not_found"
	CodeHandleTaken     = "handle_taken"
	CodeInvalidImage    = "invalid_image"
)
