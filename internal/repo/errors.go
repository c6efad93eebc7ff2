package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Error kinds surfaced by Store.Execute. Check them with errors.Is; the
// returned errors wrap these sentinels with backend detail.
var (
	// ErrUniqueViolation reports an InsertUser whose username already exists.
	ErrUniqueViolation = errors.New("uniqueness violation")

	// ErrUnsupportedQuery reports a value outside the supported query shapes.
	// It indicates a programming error in the caller.
	ErrUnsupportedQuery = errors.New("unsupported query")

	// ErrPersistence reports a failed write-through to the blob store. It is
	// only returned when the fallback engine runs in strict mode; otherwise
	// the failure is logged and the call succeeds.
	ErrPersistence = errors.New("persistence failed")

	// ErrNotInitialized reports an Execute before Initialize.
	ErrNotInitialized = errors.New("store not initialized")
)

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed: unique") ||
		strings.Contains(msg, "duplicate key")
}

// outcome classifies an Execute error for metrics labels.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUniqueViolation):
		return "unique_violation"
	case errors.Is(err, ErrUnsupportedQuery):
		return "unsupported"
	case errors.Is(err, ErrPersistence):
		return "persist_failed"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	default:
		return "error"
	}
}
