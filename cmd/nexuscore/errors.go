package main

import "errors"

// Exit codes (spec.md §6.4): 0 success, 64 configuration error, 65 vault
// authentication error, 70 startup failure, 75 graceful shutdown after a
// fatal event.
const (
	exitOK             = 0
	exitConfigError    = 64
	exitVaultAuthError = 65
	exitStartupFailure = 70
	exitFatalShutdown  = 75
)

// categorizedError lets a command's RunE attach a specific exit code instead
// of falling through to the generic cobra non-zero exit.
type categorizedError struct {
	code int
	err  error
}

func (c *categorizedError) Error() string { return c.err.Error() }
func (c *categorizedError) Unwrap() error { return c.err }

func configErr(err error) error    { return &categorizedError{code: exitConfigError, err: err} }
func vaultAuthErr(err error) error { return &categorizedError{code: exitVaultAuthError, err: err} }
func startupErr(err error) error   { return &categorizedError{code: exitStartupFailure, err: err} }
func fatalShutdownErr(err error) error {
	return &categorizedError{code: exitFatalShutdown, err: err}
}

// exitCodeFor inspects err for a categorizedError; any other non-nil error
// maps to a generic failure exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *categorizedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}
