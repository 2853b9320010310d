package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown                  = "UNKNOWN"
	CodeInvalidCredentials       = "INVALID_CREDENTIALS"
	CodeWeakPassword             = "WEAK_PASSWORD"
	CodeEmailInUse               = "EMAIL_IN_USE"
	CodeAccountDisabled          = "ACCOUNT_DISABLED"
	CodeRateLimited              = "RATE_LIMITED"
	CodeNetworkUnavailable       = "NETWORK_UNAVAILABLE"
	CodeEmailEmpty               = "EMAIL_EMPTY"
	CodeEmailInvalid             = "EMAIL_INVALID"
	CodePasswordTooShort         = "PASSWORD_TOO_SHORT"
	CodeDisplayNameEmpty         = "DISPLAY_NAME_EMPTY"
	CodeRoleInvalid              = "ROLE_INVALID"
	CodeSessionInvalidTransition = "SESSION_INVALID_TRANSITION"
	CodeSessionNotSignedIn       = "SESSION_NOT_SIGNED_IN"
	CodeOperationCanceled        = "OPERATION_CANCELED"
	CodeProfileConflict          = "PROFILE_CONFLICT"
	CodeNotFound                 = "NOT_FOUND"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		CodeUnknown: "Something went wrong. Please try again.",

		// Credential provider errors
		CodeInvalidCredentials: "Incorrect email or password",
		CodeWeakPassword:       "Password must be at least {{.MinLength}} characters",
		CodeEmailInUse:         "An account already exists for {{.Email}}",
		CodeAccountDisabled:    "This account has been disabled",
		CodeRateLimited:        "Too many attempts. Please wait and try again.",
		CodeNetworkUnavailable: "No connection. Check your network and try again.",

		// Account validation errors
		CodeEmailEmpty:       "Email is required",
		CodeEmailInvalid:     "Enter a valid email address",
		CodePasswordTooShort: "Password must be at least {{.MinLength}} characters",
		CodeDisplayNameEmpty: "Display name is required",
		CodeRoleInvalid:      "Account type must be athlete or coach",

		// Session errors
		CodeSessionInvalidTransition: "That action is not available right now",
		CodeSessionNotSignedIn:       "Sign in to continue",
		CodeOperationCanceled:        "The request was canceled",

		// Profile errors
		CodeProfileConflict: "Your profile could not be saved. Please try again.",

		// Storage errors
		CodeNotFound: "The requested record was not found",
	},
}
