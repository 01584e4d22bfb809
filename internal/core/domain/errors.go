package domain

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidCategory       Code = "INVALID_CATEGORY"
	CodeInvalidPassengerCount Code = "INVALID_PASSENGER_COUNT"
	CodeInvalidDate           Code = "INVALID_DATE"
	CodePastCutoff            Code = "PAST_CUTOFF"
	CodeNoCapacity            Code = "NO_CAPACITY"
	CodeUserNotFound          Code = "USER_NOT_FOUND"
	CodeInvalidRoute          Code = "INVALID_ROUTE"
	CodeRouteNotFound         Code = "ROUTE_NOT_FOUND"
	CodeBookingNotFound       Code = "BOOKING_NOT_FOUND"
	CodeAlreadyResolved       Code = "ALREADY_RESOLVED"
	CodeTravelDateElapsed     Code = "TRAVEL_DATE_ELAPSED"
	CodeCeilingBelowCommitted Code = "CEILING_BELOW_COMMITTED"
	CodeInvalidInventory      Code = "INVALID_INVENTORY"
	CodeTransientStore        Code = "TRANSIENT_STORE_ERROR"
)

// Error is a typed rejection. Two errors match under errors.Is when their
// codes are equal, so callers compare against the Err* values below.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func NewError(code Code, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidCategory       = &Error{Code: CodeInvalidCategory}
	ErrInvalidPassengerCount = &Error{Code: CodeInvalidPassengerCount}
	ErrInvalidDate           = &Error{Code: CodeInvalidDate}
	ErrPastCutoff            = &Error{Code: CodePastCutoff}
	ErrNoCapacity            = &Error{Code: CodeNoCapacity}
	ErrUserNotFound          = &Error{Code: CodeUserNotFound}
	ErrInvalidRoute          = &Error{Code: CodeInvalidRoute}
	ErrRouteNotFound         = &Error{Code: CodeRouteNotFound}
	ErrBookingNotFound       = &Error{Code: CodeBookingNotFound}
	ErrAlreadyResolved       = &Error{Code: CodeAlreadyResolved}
	ErrTravelDateElapsed     = &Error{Code: CodeTravelDateElapsed}
	ErrCeilingBelowCommitted = &Error{Code: CodeCeilingBelowCommitted}
	ErrInvalidInventory      = &Error{Code: CodeInvalidInventory}
	ErrTransientStore        = &Error{Code: CodeTransientStore}
)

// CodeOf returns the rejection code carried by err, or "" for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStore)
}
