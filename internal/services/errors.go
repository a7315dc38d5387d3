package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds returned by the ride lifecycle service. Handlers map them
// onto HTTP status codes; everything else is treated as a 500.
type ErrorKind int

const (
	KindValidation ErrorKind = iota // missing/malformed input, bad OTP, out-of-range rating
	KindForbidden                   // caller lacks the required relationship to the ride
	KindConflict                    // status guard failed, duplicate rating
	KindNotFound                    // unknown ride id
)

type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func NewValidationError(format string, args ...any) error {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewForbiddenError(format string, args ...any) error {
	return &DomainError{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...any) error {
	return &DomainError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...any) error {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// HTTPStatus resolves an error to the status code the REST surface
// promises: validation and conflict map to 400, forbidden to 401 and
// not-found to 404, mirroring the behaviour clients already rely on.
func HTTPStatus(err error) int {
	var de *DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// IsKind reports whether err is a DomainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Kind == kind
}
