package repository

import (
	"fmt"
	"net/http"

	"github.com/kingrea/wardboard/internal/ward"
)

// RequestError describes a failed bed service call. It matches its Kind
// (ward.ErrNetwork, ward.ErrAuth or ward.ErrValidation) with errors.Is.
type RequestError struct {
	Op     string
	Status int
	Kind   error
	// Detail is the error text the service returned, if any.
	Detail string
	Err    error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("repository: %s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the error kind.
func (e *RequestError) Is(target error) bool {
	return target == e.Kind
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// classify maps an HTTP status to an error kind. Payload rejections only
// count as validation failures for calls that send a payload.
func classify(status int, sendsPayload bool) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ward.ErrAuth
	case sendsPayload && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity):
		return ward.ErrValidation
	default:
		return ward.ErrNetwork
	}
}
