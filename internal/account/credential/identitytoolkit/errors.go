package identitytoolkit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
)

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// mapAPIError converts the provider's error payload onto the platform
// taxonomy. Unmapped messages fall through to UNKNOWN with the raw provider
// message preserved.
func mapAPIError(status int, raw []byte) error {
	var body apiErrorBody
	message := ""
	if err := json.Unmarshal(raw, &body); err == nil {
		message = strings.TrimSpace(body.Error.Message)
	}

	// Messages may carry a suffix, e.g. "WEAK_PASSWORD : Password should be
	// at least 6 characters". Match on the leading token.
	head := message
	if idx := strings.IndexAny(head, " :"); idx > 0 {
		head = head[:idx]
	}

	metadata := map[string]string{"ProviderMessage": message}

	switch head {
	case "EMAIL_EXISTS":
		return apperrors.WithMetadata(apperrors.CodeEmailInUse, "email already registered", metadata)
	case "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL":
		return apperrors.WithMetadata(apperrors.CodeInvalidCredentials, "invalid credentials", metadata)
	case "WEAK_PASSWORD", "MISSING_PASSWORD":
		return apperrors.WithMetadata(apperrors.CodeWeakPassword, "password rejected by provider", metadata)
	case "USER_DISABLED":
		return apperrors.WithMetadata(apperrors.CodeAccountDisabled, "account disabled", metadata)
	case "TOO_MANY_ATTEMPTS_TRY_LATER", "QUOTA_EXCEEDED":
		return apperrors.WithMetadata(apperrors.CodeRateLimited, "provider rate limited", metadata)
	case "TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN", "USER_NOT_FOUND", "INVALID_ID_TOKEN":
		return apperrors.WithMetadata(apperrors.CodeInvalidCredentials, "session no longer valid", metadata)
	}

	if status == 429 {
		return apperrors.WithMetadata(apperrors.CodeRateLimited, "provider rate limited", metadata)
	}
	if status >= 500 {
		return apperrors.WithMetadata(apperrors.CodeNetworkUnavailable, "provider unavailable", metadata)
	}
	return apperrors.WithMetadata(apperrors.CodeUnknown, "provider error", metadata)
}

// mapTransportError classifies failures that never produced a provider
// response.
func mapTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.CodeOperationCanceled, "request canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.CodeNetworkUnavailable, "request timed out", err)
	}
	return apperrors.Wrap(apperrors.CodeNetworkUnavailable, "network unreachable", err)
}
