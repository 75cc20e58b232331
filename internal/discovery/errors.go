package discovery

import (
	"errors"
	"fmt"
)

// CredentialError marks an authentication or authorization failure from a
// proposal backend. Retrying with the same credentials cannot succeed, so
// discovery aborts immediately when one surfaces.
type CredentialError struct {
	Provider string
	Err      error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s credentials rejected: %v", e.Provider, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// IsCredential reports whether err (or any error in its chain) is a
// CredentialError.
func IsCredential(err error) bool {
	var ce *CredentialError
	return errors.As(err, &ce)
}

// ExhaustedError is the terminal failure after all discovery attempts are
// spent. Callers treat it as "dynamic discovery unavailable" and fall
// through to the static registry.
type ExhaustedError struct {
	Domain   string
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("selector discovery for %s failed after %d attempts: %v", e.Domain, e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}
