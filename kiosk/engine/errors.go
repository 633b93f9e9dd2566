package engine

import (
	"errors"
	"fmt"
)

// Error is a stable machine-readable failure. The Code vocabulary is part of
// the API contract; the web layer maps codes to HTTP statuses and the UI
// decides presentation.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	// ErrStoreUnavailable is infrastructure failure. It is never retried by
	// the engine and is the only failure logged as severe.
	ErrStoreUnavailable = &Error{Code: "STORE_UNAVAILABLE", Message: "storage backend unavailable"}

	ErrAccountNotFound      = &Error{Code: "ACCOUNT_NOT_FOUND", Message: "account not found"}
	ErrAccountInactive      = &Error{Code: "ACCOUNT_INACTIVE", Message: "account is deactivated"}
	ErrAccountExpired       = &Error{Code: "ACCOUNT_EXPIRED", Message: "account has expired"}
	ErrAccountAlreadyExists = &Error{Code: "ACCOUNT_ALREADY_EXISTS", Message: "card is already registered"}

	ErrInvalidItemKind = &Error{Code: "INVALID_ITEM_KIND", Message: "unrecognized item kind"}

	ErrRewardNotFound     = &Error{Code: "REWARD_NOT_FOUND", Message: "reward not available"}
	ErrOutOfStock         = &Error{Code: "OUT_OF_STOCK", Message: "reward is out of stock"}
	ErrInsufficientPoints = &Error{Code: "INSUFFICIENT_POINTS", Message: "insufficient points"}
	ErrInsufficientStock  = &Error{Code: "INSUFFICIENT_STOCK", Message: "insufficient stock"}
	ErrDuplicateName      = &Error{Code: "DUPLICATE_NAME", Message: "name already exists"}

	// ErrConflict reports a lost concurrent-mutation race. The operation did
	// not commit; callers may retry or surface it.
	ErrConflict = &Error{Code: "CONFLICT", Message: "concurrent update conflict"}
)

// CodeOf extracts the stable code from err, or STORE_UNAVAILABLE for
// unclassified failures.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrStoreUnavailable.Code
}

// IsDomain reports whether err is an expected validation outcome rather than
// an infrastructure fault.
func IsDomain(err error) bool {
	var e *Error
	return errors.As(err, &e) && e != ErrStoreUnavailable
}

// storeUnavailable wraps an infrastructure failure while keeping the stable
// code reachable through errors.Is/As.
func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// classify passes expected domain errors through and wraps everything else
// as storage unavailability.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return storeUnavailable(err)
}
