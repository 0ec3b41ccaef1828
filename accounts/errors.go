package accounts

import "fmt"

type (
	ValidationError struct {
		Field  string
		Reason string
	}

	Unauthenticated struct {
		Reason string
	}
)

func (v ValidationError) Error() string {
	return fmt.Sprintf("%v %v", v.Field, v.Reason)
}

func (v ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	return ok
}

func (u Unauthenticated) Error() string {
	if u.Reason == "" {
		return "unauthenticated"
	}
	return "unauthenticated: " + u.Reason
}

func (u Unauthenticated) Is(target error) bool {
	_, ok := target.(Unauthenticated)
	return ok
}
