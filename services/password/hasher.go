package password

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arjun-computer-geek/saas-demo/config"
)

// MinLength is the shortest password accepted anywhere a password is set.
const MinLength = 6

var (
	// ErrTooShort is returned by Hash for passwords under MinLength bytes.
	ErrTooShort = errors.New("password too short")

	// ErrUnknownFormat is returned by Verify for hashes no hasher recognises.
	ErrUnknownFormat = errors.New("unrecognised password hash format")
)

// Hasher hashes and verifies passwords. Verify reports a mismatch as
// (false, nil); errors mean the stored hash itself is unusable.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// New builds the hasher selected by cfg.Algorithm. New hashes use that
// algorithm; verification accepts both argon2id and bcrypt hashes so
// accounts survive a switch.
func New(cfg config.PasswordConfig) (*Multi, error) {
	argon, err := NewArgon2(Argon2Config{
		Memory:      cfg.Argon2Memory,
		Time:        cfg.Argon2Time,
		Parallelism: cfg.Argon2Threads,
		SaltLength:  cfg.Argon2SaltLen,
		KeyLength:   cfg.Argon2KeyLen,
	})
	if err != nil {
		return nil, err
	}
	bc, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	switch cfg.Algorithm {
	case "", algorithmID:
		return &Multi{primary: argon, argon: argon, bcrypt: bc}, nil
	case "bcrypt":
		return &Multi{primary: bc, argon: argon, bcrypt: bc}, nil
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}
}

// Multi hashes with one algorithm and verifies against whichever produced
// the stored hash.
type Multi struct {
	primary Hasher
	argon   *Argon2
	bcrypt  *Bcrypt
}

// Hash hashes with the configured algorithm
func (m *Multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

// Verify dispatches on the hash prefix
func (m *Multi) Verify(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$"+algorithmID+"$"):
		return m.argon.Verify(password, encoded)
	case isBcryptHash(encoded):
		return m.bcrypt.Verify(password, encoded)
	default:
		return false, ErrUnknownFormat
	}
}

var _ Hasher = (*Multi)(nil)
