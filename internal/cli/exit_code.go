package cli

import (
	"errors"
	"net/http"

	"github.com/benedict2310/slimlytics/internal/client"
)

const (
	exitFailure      = 1
	exitUnhealthy    = 2
	exitUnauthorized = 3
	exitNotFound     = 4
)

type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func exitCodeError(code int, err error) error {
	if code <= 0 {
		return err
	}
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps a command error to the process exit status. API errors for
// missing credentials and missing resources get their own codes so scripts
// can tell them apart.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coded *ExitError
	if errors.As(err, &coded) && coded.Code > 0 {
		return coded.Code
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return exitUnauthorized
		case http.StatusNotFound:
			return exitNotFound
		}
	}
	return exitFailure
}
