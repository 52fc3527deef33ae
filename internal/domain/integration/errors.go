package integration

import "errors"

// ---------------------------------------------------------------------------
// Sync Errors
// ---------------------------------------------------------------------------

var (
	// Authentication errors abort a whole run.
	ErrAuthFailed       = errors.New("integration: authentication failed")
	ErrNotAuthenticated = errors.New("integration: client not authenticated")

	// Transport errors are contained to the call that produced them.
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrERPUnavailable          = errors.New("integration: erp temporarily unavailable")
	ErrERPFault                = errors.New("integration: erp fault")
	ErrERPInvalidResponse      = errors.New("integration: invalid erp response")

	// Validation errors
	ErrInvalidPayload = errors.New("integration: invalid payload")
	ErrEmptySKU       = errors.New("integration: empty sku")
)

// IsAuthFailure reports whether err should abort the run.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrNotAuthenticated)
}
