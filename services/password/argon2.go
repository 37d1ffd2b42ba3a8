package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID   = "argon2id"
	minMemoryKB   = 8 * 1024
	minSaltLength = 16
	minKeyLength  = 16
)

// Argon2Config tunes argon2id
type Argon2Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 produces PHC strings of the form
// $argon2id$v=19$m=<mem>,t=<time>,p=<par>$<salt>$<hash>.
type Argon2 struct {
	cfg Argon2Config
}

// NewArgon2 validates cfg and returns a hasher
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("argon2 memory must be >= %d KiB", minMemoryKB)
	case cfg.Time < 1:
		return nil, errors.New("argon2 time must be >= 1")
	case cfg.Parallelism < 1:
		return nil, errors.New("argon2 parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("argon2 salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("argon2 key length must be >= %d", minKeyLength)
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash hashes password with a fresh random salt
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < MinLength {
		return "", ErrTooShort
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		a.cfg.Memory, a.cfg.Time, a.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the parameters stored in encoded
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrUnknownFormat
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	var p phc
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.New("invalid argon2 parameter")
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid argon2 parameter %q", k)
		}
		switch k {
		case "m":
			p.memory = uint32(n)
		case "t":
			p.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, errors.New("invalid argon2 parallelism")
			}
			p.parallelism = uint8(n)
		default:
			return nil, fmt.Errorf("unsupported argon2 parameter %q", k)
		}
	}
	if p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, errors.New("missing argon2 parameters")
	}

	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, errors.New("invalid argon2 salt encoding")
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return nil, errors.New("invalid argon2 hash encoding")
	}
	return &p, nil
}
