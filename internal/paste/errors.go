package paste

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an expected, user-facing failure carrying the HTTP status it maps to.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Errorf builds an *Error with a formatted message.
func Errorf(status int, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// StatusOf returns the status carried by err, or 500 for unexpected errors.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

func notFound(short string) *Error {
	return Errorf(http.StatusNotFound, "paste of name '%s' is not found", short)
}

func forbidden(short string) *Error {
	return Errorf(http.StatusForbidden, "incorrect password for paste '%s'", short)
}
