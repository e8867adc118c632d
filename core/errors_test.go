package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestBountyErrorMapper_SentinelsKeepTheirChains(t *testing.T) {
	cases := []struct {
		sentinel error
		category goerrors.Category
		textCode string
		code     int
	}{
		{ErrSignatureInvalid, goerrors.CategoryAuth, BountyErrorSignatureInvalid, http.StatusUnauthorized},
		{ErrMalformedEvent, goerrors.CategoryBadInput, BountyErrorMalformedEvent, http.StatusBadRequest},
		{ErrBountyNotFound, goerrors.CategoryNotFound, BountyErrorNotFound, http.StatusNotFound},
		{ErrStatusConflict, goerrors.CategoryConflict, BountyErrorClaimConflict, http.StatusConflict},
		{ErrChecksNotPassing, goerrors.CategoryOperation, BountyErrorChecksNotPassing, http.StatusInternalServerError},
		{ErrPaymentFailed, goerrors.CategoryExternal, BountyErrorPaymentFailed, http.StatusBadGateway},
		{ErrEscalationSkipped, goerrors.CategoryOperation, BountyErrorEscalationIneligible, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		wrapped := fmt.Errorf("outer context: %w", tc.sentinel)
		mapped := bountyErrorMapper(wrapped)
		if mapped == nil {
			t.Fatalf("%v: expected mapped error", tc.sentinel)
		}
		if mapped.Category != tc.category {
			t.Fatalf("%v: expected category %q, got %q", tc.sentinel, tc.category, mapped.Category)
		}
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%v: expected text code %q, got %q", tc.sentinel, tc.textCode, mapped.TextCode)
		}
		if mapped.Code != tc.code {
			t.Fatalf("%v: expected http code %d, got %d", tc.sentinel, tc.code, mapped.Code)
		}
		if !errors.Is(mapped, tc.sentinel) {
			t.Fatalf("%v: expected sentinel to survive mapping", tc.sentinel)
		}
	}
}

func TestBountyErrorMapper_PassesThroughRichErrors(t *testing.T) {
	original := goerrors.New("already mapped", goerrors.CategoryRateLimit).WithTextCode("CUSTOM_CODE")
	mapped := bountyErrorMapper(original)
	if mapped != original {
		t.Fatalf("expected rich error passthrough")
	}
	if mapped.TextCode != "CUSTOM_CODE" {
		t.Fatalf("expected custom text code preserved, got %q", mapped.TextCode)
	}
}

func TestBountyErrorMapper_UnknownErrorsGetEnvelope(t *testing.T) {
	mapped := bountyErrorMapper(fmt.Errorf("something odd happened"))
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.TextCode == "" {
		t.Fatalf("expected fallback text code")
	}
	if mapped.Code == 0 {
		t.Fatalf("expected fallback http code")
	}
}

func TestBountyErrorMapper_Nil(t *testing.T) {
	if mapped := bountyErrorMapper(nil); mapped != nil {
		t.Fatalf("expected nil mapping for nil error, got %v", mapped)
	}
}
