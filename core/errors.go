package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	BountyErrorBadInput             = "BOUNTY_BAD_INPUT"
	BountyErrorSignatureInvalid     = "BOUNTY_SIGNATURE_INVALID"
	BountyErrorMalformedEvent       = "BOUNTY_MALFORMED_EVENT"
	BountyErrorNotFound             = "BOUNTY_NOT_FOUND"
	BountyErrorChecksNotPassing     = "BOUNTY_CHECKS_NOT_PASSING"
	BountyErrorAddressMissing       = "BOUNTY_ADDRESS_MISSING"
	BountyErrorAddressInvalid       = "BOUNTY_ADDRESS_INVALID"
	BountyErrorClaimConflict        = "BOUNTY_CLAIM_CONFLICT"
	BountyErrorPaymentFailed        = "BOUNTY_PAYMENT_FAILED"
	BountyErrorEscalationIneligible = "BOUNTY_ESCALATION_NOT_ELIGIBLE"
	BountyErrorNotificationFailed   = "BOUNTY_NOTIFICATION_FAILED"
	BountyErrorInternal             = "BOUNTY_INTERNAL_ERROR"
)

var (
	ErrSignatureInvalid   = errors.New("core: webhook signature invalid")
	ErrMalformedEvent     = errors.New("core: malformed event payload")
	ErrChecksNotPassing   = errors.New("core: checks not passing for head commit")
	ErrAddressMissing     = errors.New("core: payment address missing from merge description")
	ErrAddressInvalid     = errors.New("core: payment address invalid")
	ErrPaymentFailed      = errors.New("core: payment provider failure")
	ErrEscalationSkipped  = errors.New("core: bounty not eligible for escalation")
	ErrNotificationFailed = errors.New("core: notification publish failed")
)

func bountyErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureBountyErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrSignatureInvalid):
		return wrapBountyError(err, goerrors.CategoryAuth, BountyErrorSignatureInvalid)
	case errors.Is(err, ErrMalformedEvent):
		return wrapBountyError(err, goerrors.CategoryBadInput, BountyErrorMalformedEvent)
	case errors.Is(err, ErrBountyNotFound):
		return wrapBountyError(err, goerrors.CategoryNotFound, BountyErrorNotFound)
	case errors.Is(err, ErrStatusConflict):
		return wrapBountyError(err, goerrors.CategoryConflict, BountyErrorClaimConflict)
	case errors.Is(err, ErrChecksNotPassing):
		return wrapBountyError(err, goerrors.CategoryOperation, BountyErrorChecksNotPassing)
	case errors.Is(err, ErrAddressMissing):
		return wrapBountyError(err, goerrors.CategoryBadInput, BountyErrorAddressMissing)
	case errors.Is(err, ErrAddressInvalid):
		return wrapBountyError(err, goerrors.CategoryBadInput, BountyErrorAddressInvalid)
	case errors.Is(err, ErrPaymentFailed):
		return wrapBountyError(err, goerrors.CategoryExternal, BountyErrorPaymentFailed)
	case errors.Is(err, ErrEscalationSkipped):
		return wrapBountyError(err, goerrors.CategoryOperation, BountyErrorEscalationIneligible)
	case errors.Is(err, ErrNotificationFailed):
		return wrapBountyError(err, goerrors.CategoryExternal, BountyErrorNotificationFailed)
	case errors.Is(err, ErrInvalidBountyStatusTransition), errors.Is(err, ErrInvalidBountyAmounts):
		return wrapBountyError(err, goerrors.CategoryConflict, BountyErrorClaimConflict)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureBountyErrorEnvelope(mapped)
}

func newBountyError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureBountyErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

// wrapBountyError keeps the sentinel chain intact so callers can still use
// errors.Is through the envelope.
func wrapBountyError(source error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureBountyErrorEnvelope(
		goerrors.Wrap(source, category, source.Error()).
			WithTextCode(textCode),
	)
}

func ensureBountyErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = bountyHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultBountyTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultBountyTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return BountyErrorBadInput
	case goerrors.CategoryNotFound:
		return BountyErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return BountyErrorSignatureInvalid
	case goerrors.CategoryConflict:
		return BountyErrorClaimConflict
	case goerrors.CategoryExternal:
		return BountyErrorPaymentFailed
	case goerrors.CategoryOperation:
		return BountyErrorChecksNotPassing
	default:
		return BountyErrorInternal
	}
}

func bountyHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
