package vault

import "fmt"

type (
	DuplicateEmail struct {
		Email string
	}

	NotFound struct {
		Kind string
		Key  string
	}

	// StoreFailure wraps errors coming from the persistence layer that are
	// not part of the contract (connection loss, constraint other than email
	// uniqueness, decoding problems, ...).
	StoreFailure struct {
		Op    string
		cause error
	}
)

func (d DuplicateEmail) Error() string {
	return fmt.Sprintf("email %v is already registered", d.Email)
}

// Is matches any DuplicateEmail, regardless of the email.
func (d DuplicateEmail) Is(target error) bool {
	_, ok := target.(DuplicateEmail)
	return ok
}

func (n NotFound) Error() string {
	return fmt.Sprintf("%v %v not found", n.Kind, n.Key)
}

// Is matches any NotFound, regardless of kind and key.
func (n NotFound) Is(target error) bool {
	_, ok := target.(NotFound)
	return ok
}

// Fail builds a StoreFailure for the given operation.
func Fail(op string, cause error) StoreFailure {
	return StoreFailure{Op: op, cause: cause}
}

func (s StoreFailure) Error() string {
	return fmt.Sprintf("vault: unable to %v, cause %v", s.Op, s.cause)
}

func (s StoreFailure) Unwrap() error {
	return s.cause
}

func (s StoreFailure) Is(target error) bool {
	_, ok := target.(StoreFailure)
	return ok
}
