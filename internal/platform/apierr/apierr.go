package apierr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/yungbote/cibics-tracking-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the generic sentinels by status.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch e.Status {
	case http.StatusBadRequest:
		return target == pkgerrors.ErrInvalidArgument
	case http.StatusUnauthorized:
		return target == pkgerrors.ErrUnauthorized
	case http.StatusForbidden:
		return target == pkgerrors.ErrForbidden
	case http.StatusNotFound:
		return target == pkgerrors.ErrNotFound
	case http.StatusConflict:
		return target == pkgerrors.ErrConflict
	}
	return false
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, format string, args ...any) *Error {
	return New(http.StatusBadRequest, code, fmt.Errorf(format, args...))
}

func Unauthorized(code string, format string, args ...any) *Error {
	return New(http.StatusUnauthorized, code, fmt.Errorf(format, args...))
}

func Forbidden(code string, format string, args ...any) *Error {
	return New(http.StatusForbidden, code, fmt.Errorf(format, args...))
}

func NotFound(code string, format string, args ...any) *Error {
	return New(http.StatusNotFound, code, fmt.Errorf(format, args...))
}

func Conflict(code string, format string, args ...any) *Error {
	return New(http.StatusConflict, code, fmt.Errorf(format, args...))
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}
