// Package password hashes and verifies account passwords.
//
// New hashes use the configured algorithm, while Verify understands every
// supported format, so changing the algorithm never locks existing users out.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	Bcrypt   = "bcrypt"
	Argon2id = "argon2id"

	DefaultBcryptCost   = 10
	DefaultArgon2Passes = 3

	// MaxLength is the longest plaintext bcrypt accepts, in bytes.
	MaxLength = 72

	argonMemory  = 64 * 1024
	argonThreads = 2
	argonSaltLen = 16
	argonKeyLen  = 32

	// argonMaxMemory bounds the m= parameter of stored hashes, in KiB.
	argonMaxMemory = 1024 * 1024
)

type (
	Options struct {
		Algorithm string
		Cost      int
	}

	Hasher struct {
		algorithm string
		cost      int
	}

	HashingFailure struct {
		cause error
	}
)

func (h HashingFailure) Error() string {
	return fmt.Sprintf("password: hashing failure, cause %v", h.cause)
}

func (h HashingFailure) Unwrap() error { return h.cause }

func (h HashingFailure) Is(target error) bool {
	_, ok := target.(HashingFailure)
	return ok
}

// New validates opts and returns a Hasher. Zero values pick bcrypt with
// cost 10.
func New(opts Options) (*Hasher, error) {
	h := &Hasher{algorithm: strings.ToLower(opts.Algorithm), cost: opts.Cost}
	switch h.algorithm {
	case "", Bcrypt:
		h.algorithm = Bcrypt
		if h.cost == 0 {
			h.cost = DefaultBcryptCost
		}
		if h.cost < bcrypt.MinCost || h.cost > bcrypt.MaxCost {
			return nil, fmt.Errorf("password: bcrypt cost %v outside [%v, %v]", h.cost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case Argon2id:
		if h.cost == 0 {
			h.cost = DefaultArgon2Passes
		}
		if h.cost < 1 || h.cost > 255 {
			return nil, fmt.Errorf("password: argon2id passes %v outside [1, 255]", h.cost)
		}
	default:
		return nil, fmt.Errorf("password: unknown algorithm %q", opts.Algorithm)
	}
	return h, nil
}

func (h *Hasher) Algorithm() string { return h.algorithm }

// Hash returns a salted hash of plain in the configured format.
func (h *Hasher) Hash(plain string) (string, error) {
	if h.algorithm == Argon2id {
		return hashArgon2(plain, uint32(h.cost))
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", HashingFailure{cause: err}
	}
	return string(out), nil
}

// Verify reports whether plain matches hash. A mismatch is not an error.
func (h *Hasher) Verify(plain, hash string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return verifyArgon2(plain, hash)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		} else if err != nil {
			return false, HashingFailure{cause: err}
		}
		return true, nil
	}
	return false, HashingFailure{cause: errors.New("unrecognized hash format")}
}

func hashArgon2(plain string, passes uint32) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", HashingFailure{cause: err}
	}
	key := argon2.IDKey([]byte(plain), salt, passes, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, passes, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func verifyArgon2(plain, encoded string) (bool, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, HashingFailure{cause: errors.New("malformed argon2id hash")}
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, HashingFailure{cause: fmt.Errorf("unsupported argon2 version %q", parts[2])}
	}
	var memory, passes uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &passes, &threads); err != nil {
		return false, HashingFailure{cause: fmt.Errorf("malformed argon2id parameters, cause %w", err)}
	}
	if passes == 0 || threads == 0 {
		return false, HashingFailure{cause: errors.New("argon2id parameters must be positive")}
	}
	if memory == 0 || memory > argonMaxMemory {
		return false, HashingFailure{cause: fmt.Errorf("argon2id memory %v out of range", memory)}
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, HashingFailure{cause: err}
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, HashingFailure{cause: err}
	}
	if len(want) != argonKeyLen {
		return false, HashingFailure{cause: fmt.Errorf("argon2id key must be %v bytes, got %v", argonKeyLen, len(want))}
	}
	got := argon2.IDKey([]byte(plain), salt, passes, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
