package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIs_MatchesByCode(t *testing.T) {
	first := New(CodeEmailInUse, "email already registered")
	second := New(CodeEmailInUse, "duplicate email")

	if !errors.Is(first, second) {
		t.Fatal("expected errors with the same code to match")
	}
	if errors.Is(first, New(CodeWeakPassword, "weak password")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(CodeNetworkUnavailable, "sign in failed", cause)

	if !errors.Is(wrapped, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if wrapped.Error() != "sign in failed" {
		t.Fatalf("unexpected message: %q", wrapped.Error())
	}
}

func TestCodeOf(t *testing.T) {
	domainErr := New(CodeRateLimited, "too many attempts")
	wrapped := fmt.Errorf("authenticate: %w", domainErr)

	if code := CodeOf(wrapped); code != CodeRateLimited {
		t.Fatalf("expected %v, got %v", CodeRateLimited, code)
	}
	if code := CodeOf(errors.New("plain")); code != CodeUnknown {
		t.Fatalf("expected %v for plain error, got %v", CodeUnknown, code)
	}
	if code := CodeOf(nil); code != CodeUnknown {
		t.Fatalf("expected %v for nil error, got %v", CodeUnknown, code)
	}
}

func TestRetryable_AllTaxonomyCodesAreManual(t *testing.T) {
	codes := []Code{
		CodeInvalidCredentials,
		CodeWeakPassword,
		CodeEmailInUse,
		CodeAccountDisabled,
		CodeRateLimited,
		CodeNetworkUnavailable,
		CodeUnknown,
	}
	for _, code := range codes {
		if code.Retryable() {
			t.Fatalf("code %v must not be auto-retryable", code)
		}
	}
}
