package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dugoutlabs/dugout/internal/account/profilestore"
	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
)

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func mapAPIError(status int, raw []byte) error {
	var body apiErrorBody
	grpcStatus := ""
	message := ""
	if err := json.Unmarshal(raw, &body); err == nil {
		grpcStatus = strings.TrimSpace(body.Error.Status)
		message = strings.TrimSpace(body.Error.Message)
	}
	metadata := map[string]string{"ProviderMessage": message}

	switch {
	case status == 404 || grpcStatus == "NOT_FOUND":
		return profilestore.ErrNotFound
	case status == 409 || grpcStatus == "ALREADY_EXISTS":
		return profilestore.ErrAlreadyExists
	case status == 429 || grpcStatus == "RESOURCE_EXHAUSTED":
		return apperrors.WithMetadata(apperrors.CodeRateLimited, "document store rate limited", metadata)
	case status == 401 || status == 403:
		return apperrors.WithMetadata(apperrors.CodeInvalidCredentials, "document store rejected credentials", metadata)
	case status >= 500:
		return apperrors.WithMetadata(apperrors.CodeNetworkUnavailable, "document store unavailable", metadata)
	default:
		return apperrors.WithMetadata(apperrors.CodeUnknown, "document store error", metadata)
	}
}

func mapTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.CodeOperationCanceled, "request canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.CodeNetworkUnavailable, "request timed out", err)
	}
	return apperrors.Wrap(apperrors.CodeNetworkUnavailable, "network unreachable", err)
}

func isNotFound(err error) bool {
	return errors.Is(err, profilestore.ErrNotFound)
}
