package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidQuery    = 1003
	ErrCodeInvalidProject  = 1004
	ErrCodeInvalidEnvelope = 1005
	ErrCodeInvalidFixture  = 1006
	ErrCodeMissingRequired = 1009

	// Domain state (2xxx)
	ErrCodeProjectNotFound    = 2001
	ErrCodeConflict           = 2102
	ErrCodeGraphConfiguration = 2201

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003
	ErrCodeInvalidSignature  = 3004

	// Internal/system (4xxx)
	ErrCodeInternal       = 4001
	ErrCodeStoreFailure   = 4002
	ErrCodeArchiveFailed  = 4003
	ErrCodeNotImplemented = 4005
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeProjectNotFound
	case 409:
		return ErrCodeConflict
	case 422:
		return ErrCodeGraphConfiguration
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 501:
		return ErrCodeNotImplemented
	default:
		return 0
	}
}
