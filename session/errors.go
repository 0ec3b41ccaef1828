package session

import (
	"errors"
	"fmt"
)

type (
	InvalidSignature struct {
		cause error
	}

	Expired struct{}

	UnknownSubject struct {
		Subject string
	}

	// Revoked means the token is authentic but no longer on the user's
	// allow-list.
	Revoked struct{}
)

func (i InvalidSignature) Error() string {
	if i.cause == nil {
		return "session: invalid token signature"
	}
	return fmt.Sprintf("session: invalid token signature, cause %v", i.cause)
}

func (i InvalidSignature) Unwrap() error { return i.cause }

func (i InvalidSignature) Is(target error) bool {
	_, ok := target.(InvalidSignature)
	return ok
}

func (Expired) Error() string { return "session: token expired" }

func (u UnknownSubject) Error() string {
	return fmt.Sprintf("session: token subject %v does not exist", u.Subject)
}

func (u UnknownSubject) Is(target error) bool {
	_, ok := target.(UnknownSubject)
	return ok
}

func (Revoked) Error() string { return "session: token was revoked" }

// IsVerificationError reports whether err means the token should be
// rejected, as opposed to a failure while checking it.
func IsVerificationError(err error) bool {
	return errors.Is(err, InvalidSignature{}) ||
		errors.Is(err, Expired{}) ||
		errors.Is(err, UnknownSubject{}) ||
		errors.Is(err, Revoked{})
}
