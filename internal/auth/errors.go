package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is fatal for the attempt and must not be retried.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrMFATimeout means the verification mail never arrived. The attempt
	// failed but the caller may retry.
	ErrMFATimeout = errors.New("auth: verification code not received in time")
	// ErrBotChallengeBlocked means the vendor edge rejected the direct HTTP
	// transport. Recoverable by switching to the browser transport.
	ErrBotChallengeBlocked = errors.New("auth: blocked by bot detection")
)

// ProtocolError marks a response whose shape does not match any known state
// of the vendor's login flow. The cloud surface is undocumented and changes
// without notice, so the raw body is kept for diagnosis.
type ProtocolError struct {
	Step    string
	Status  int
	RawBody string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: protocol error at %s (status %d): %s", e.Step, e.Status, e.Err)
	}
	return fmt.Sprintf("auth: protocol error at %s (status %d)", e.Step, e.Status)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolErr(step string, status int, body string, err error) *ProtocolError {
	return &ProtocolError{Step: step, Status: status, RawBody: body, Err: err}
}
