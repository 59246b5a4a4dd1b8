package core

import (
	"errors"
	"fmt"
)

// Issuance validation failures. Each distinct cause has its own sentinel so
// callers can branch with errors.Is; none of them leave partial state behind.
var (
	ErrEmptyScopes    = errors.New("scopes must not be empty")
	ErrEmptyOrigins   = errors.New("origins must not be empty")
	ErrTTLTooLong     = errors.New("ttl exceeds the system maximum")
	ErrTTLInvalid     = errors.New("ttl must be positive")
	ErrConsentMissing = errors.New("explicit consent is required")
	ErrSessionInvalid = errors.New("session handle is unknown or expired")
)

// ValidationError wraps one of the issuance sentinels with the offending
// field for API error bodies.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// ErrTokenNotFound is returned by token stores for unknown jtis.
var ErrTokenNotFound = errors.New("token not found")

// ErrLedgerAppend marks a failed audit append. Per the audit contract it is
// fatal to the enclosing issue/verify/revoke call: no authorization decision
// is acted upon without a durable audit record.
var ErrLedgerAppend = errors.New("audit ledger append failed")
