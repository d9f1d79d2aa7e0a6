package marketdata

import "fmt"

// NotFoundError marks an upstream lookup that returned no data. The API
// layer maps it to a 404.
type NotFoundError struct {
	msg string
}

func (e *NotFoundError) Error() string { return e.msg }

func notFoundf(format string, a ...interface{}) error {
	return &NotFoundError{msg: fmt.Sprintf(format, a...)}
}

// AuthError marks a missing or rejected upstream credential (401).
type AuthError struct {
	msg string
}

func (e *AuthError) Error() string { return e.msg }

// InvalidTickerError marks a malformed symbol or pair (400).
type InvalidTickerError struct {
	msg string
}

func (e *InvalidTickerError) Error() string { return e.msg }

func invalidTickerf(format string, a ...interface{}) error {
	return &InvalidTickerError{msg: fmt.Sprintf(format, a...)}
}
