package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, never on
// Message, so existing values must not change.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"

	// ErrCodeRateLimited is written by middleware.RateLimiter, which cannot
	// import this package; the two must agree.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeStorageFailed means the fallback engine could not persist a
	// change and rejected it (strict persist mode). Retrying later may work.
	ErrCodeStorageFailed = "storage_failed"

	// Operation-specific 500s.
	ErrCodeCreateFailed = "create_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeUpdateFailed = "update_failed"
	ErrCodeDeleteFailed = "delete_failed"
)
