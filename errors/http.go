package errors

import "net/http"

// HTTPStatus returns the response status that best describes given error.
// Errors that were not registered are reported as internal server errors.
func HTTPStatus(err error) int {
	if isNilErr(err) {
		return http.StatusOK
	}
	switch {
	case ErrNotFound.Is(err), ErrTransactionNotFound.Is(err):
		return http.StatusNotFound
	case ErrAlreadyInProgress.Is(err), ErrAlreadyBroadcast.Is(err), ErrDuplicate.Is(err):
		return http.StatusConflict
	case ErrInconsistentSignedPayload.Is(err), ErrThresholdNotMet.Is(err), ErrState.Is(err):
		return http.StatusUnprocessableEntity
	case ErrUnknownSigner.Is(err), ErrUnauthorized.Is(err):
		return http.StatusForbidden
	case ErrNodeUnavailable.Is(err):
		return http.StatusBadGateway
	case ErrNodeRejected.Is(err):
		return http.StatusBadGateway
	case ErrTimeout.Is(err):
		return http.StatusGatewayTimeout
	case ErrInvalidThreshold.Is(err), ErrInvalidPublicKey.Is(err), ErrValidation.Is(err),
		ErrInput.Is(err), ErrEmpty.Is(err), ErrType.Is(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Redact replaces all errors that were not created from a registered root
// error with a generic internal error. This hides implementation details
// from clients.
//
// This is a no-operation function when running in debug mode.
func Redact(err error, debug bool) error {
	if debug || isNilErr(err) {
		return err
	}
	if ErrPanic.Is(err) || Code(err) == internalCode {
		return usedCodes[internalCode]
	}
	return err
}
