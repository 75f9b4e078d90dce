package treestore

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	Unknown ErrorCode = iota
	LockAcquisitionFailure
	// NotFound is returned when a node or lock target is absent.
	NotFound
	// InvalidOperation covers cycle-inducing moves, root removal, malformed names and positions.
	InvalidOperation
	// Denied is a permission or lock conflict. UserData names the conflicting holder when known.
	Denied
	// Capacity is returned when the spreaded allocator cannot make space even at the root.
	Capacity
	// Transient is a database-detected lock conflict; it is retried and only surfaces once a deadline passes.
	Transient
	// Integrity is a structural invariant violation detected mid-flight or by the tree check.
	Integrity
	// Timeout is returned when a bounded wait (row lock acquisition) exceeds its deadline.
	Timeout
)

var codeNames = map[ErrorCode]string{
	Unknown:                "unknown",
	LockAcquisitionFailure: "lock acquisition failure",
	NotFound:               "not found",
	InvalidOperation:       "invalid operation",
	Denied:                 "denied",
	Capacity:               "capacity",
	Transient:              "transient",
	Integrity:              "integrity",
	Timeout:                "timeout",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is the typed failure returned by all engine operations.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	return fmt.Errorf("error code: %d (%s), user data: %v, details: %w", e.Code, e.Code, e.UserData, e.Err).Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error whose details carry the message key and optional arguments.
func NewError(code ErrorCode, key string, userData any) Error {
	return Error{
		Code:     code,
		Err:      errors.New(key),
		UserData: userData,
	}
}

// WrapError wraps err into an Error unless it already is one.
func WrapError(code ErrorCode, err error, userData any) error {
	if err == nil {
		return nil
	}
	var e Error
	if errors.As(err, &e) {
		return err
	}
	return Error{
		Code:     code,
		Err:      err,
		UserData: userData,
	}
}

// CodeOf returns the code of the first Error in err's chain, Unknown otherwise.
func CodeOf(err error) ErrorCode {
	var e Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
