package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Invalid      Kind = "invalid"
	Unauthorized Kind = "unauthorized"
	Forbidden    Kind = "forbidden"
	NotFound     Kind = "not_found"
	Conflict     Kind = "conflict"
	Gateway      Kind = "gateway"
	Internal     Kind = "internal"
)

// Error carries an error kind so handlers can map failures to HTTP codes
// and callers can tell "you lost a race" (Conflict) apart from "you sent
// garbage" (Invalid) and from gateway declines (Gateway).
type Error struct {
	Kind        Kind
	Msg         string
	Fields      map[string]string // field-level validation detail
	GatewayCode string            // processor reason code (decline code etc.)
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidErr(msg string, fields map[string]string) *Error {
	return &Error{Kind: Invalid, Msg: msg, Fields: fields}
}

func UnauthorizedErr(msg string) *Error {
	return &Error{Kind: Unauthorized, Msg: msg}
}

func ForbiddenErr(msg string) *Error {
	return &Error{Kind: Forbidden, Msg: msg}
}

func NotFoundErr(msg string) *Error {
	return &Error{Kind: NotFound, Msg: msg}
}

func ConflictErr(msg string) *Error {
	return &Error{Kind: Conflict, Msg: msg}
}

// GatewayErr wraps a payment processor failure, keeping its reason code.
func GatewayErr(msg, code string, err error) *Error {
	return &Error{Kind: Gateway, Msg: msg, GatewayCode: code, Err: err}
}

func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: Internal, Msg: "unexpected error", Err: err}
}

func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func IsKind(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}

func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		switch ae.Kind {
		case Invalid:
			return http.StatusBadRequest
		case Unauthorized:
			return http.StatusUnauthorized
		case Forbidden:
			return http.StatusForbidden
		case NotFound:
			return http.StatusNotFound
		case Conflict:
			return http.StatusConflict
		case Gateway:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}
