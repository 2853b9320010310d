// Package errors provides structured error handling with i18n support.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Credential provider errors
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeWeakPassword       Code = "WEAK_PASSWORD"
	CodeEmailInUse         Code = "EMAIL_IN_USE"
	CodeAccountDisabled    Code = "ACCOUNT_DISABLED"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeNetworkUnavailable Code = "NETWORK_UNAVAILABLE"

	// Account validation errors
	CodeEmailEmpty       Code = "EMAIL_EMPTY"
	CodeEmailInvalid     Code = "EMAIL_INVALID"
	CodePasswordTooShort Code = "PASSWORD_TOO_SHORT"
	CodeDisplayNameEmpty Code = "DISPLAY_NAME_EMPTY"
	CodeRoleInvalid      Code = "ROLE_INVALID"

	// Session errors
	CodeSessionInvalidTransition Code = "SESSION_INVALID_TRANSITION"
	CodeSessionNotSignedIn       Code = "SESSION_NOT_SIGNED_IN"
	CodeOperationCanceled        Code = "OPERATION_CANCELED"

	// Profile errors
	CodeProfileConflict Code = "PROFILE_CONFLICT"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Retryable reports whether an operation failing with this code may be
// retried automatically. Every credential taxonomy member is non-retryable:
// retry is a user-initiated re-submission. The only automatic retry in the
// system is the profile-load backoff, which retries an absence rather than
// an error.
func (c Code) Retryable() bool {
	return false
}
