package verification

import (
	"errors"
	"fmt"

	dErrors "persona/pkg/domain-errors"
)

// Kind classifies why HandleProof failed. Handlers map kinds to status codes.
type Kind string

const (
	KindInvalidProof        Kind = "invalid_proof"
	KindMalformedClaim      Kind = "malformed_claim"
	KindUnsupportedProvider Kind = "unsupported_provider"
	KindStoreUnavailable    Kind = "store_unavailable"
	KindWriteRejected       Kind = "write_rejected"
	KindInternal            Kind = "internal"
)

// Error is the only error type HandleProof returns.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code maps the kind onto the shared domain error codes.
func (e *Error) Code() dErrors.Code {
	switch e.Kind {
	case KindInvalidProof:
		return dErrors.CodeInvalidProof
	case KindMalformedClaim:
		return dErrors.CodeMalformedClaim
	case KindUnsupportedProvider:
		return dErrors.CodeUnsupportedProvider
	case KindStoreUnavailable:
		return dErrors.CodeUnavailable
	case KindWriteRejected:
		return dErrors.CodeBadGateway
	default:
		return dErrors.CodeInternal
	}
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
