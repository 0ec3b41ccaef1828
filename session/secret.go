package session

import (
	"errors"
	"fmt"
	"os"
)

const (
	SecretEnvVar = "LOCKBOX_SECRET"
)

// Secret is the HMAC key used to sign session tokens.
type Secret []byte

// SecretFromEnv reads the signing secret from varname and clears the
// variable, so child processes and later lookups cannot see it.
// nil functions default to os.Getenv and os.Setenv.
func SecretFromEnv(varname string, getfn func(string) string, setfn func(string, string) error) (Secret, error) {
	if getfn == nil {
		getfn = os.Getenv
	}
	if setfn == nil {
		setfn = os.Setenv
	}
	if varname == "" {
		varname = SecretEnvVar
	}
	val := getfn(varname)
	if err := setfn(varname, ""); err != nil {
		return nil, fmt.Errorf("session: unable to clear %v, cause %w", varname, err)
	}
	if val == "" {
		return nil, errors.New("session: signing secret is empty, set " + varname)
	}
	return Secret(val), nil
}
