package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned for tokens that fail signature, claim or
	// format checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Identity is the principal a credential speaks for.
type Identity struct {
	UserID   uuid.UUID
	OrgID    *uuid.UUID
	OrgEpoch int64
	IsSuper  bool
}

// AccessClaims are the JWT claims of an access token
type AccessClaims struct {
	Org   string `json:"org,omitempty"`
	Epoch int64  `json:"epoch,omitempty"`
	Super bool   `json:"super,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts verified claims back into an Identity
func (c *AccessClaims) Identity() (Identity, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid subject", ErrInvalidToken)
	}
	id := Identity{UserID: userID, OrgEpoch: c.Epoch, IsSuper: c.Super}
	if c.Org != "" {
		orgID, err := uuid.Parse(c.Org)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: invalid org claim", ErrInvalidToken)
		}
		id.OrgID = &orgID
	}
	if id.IsSuper && id.OrgID != nil {
		return Identity{}, fmt.Errorf("%w: super-admin token carries an org", ErrInvalidToken)
	}
	return id, nil
}

// Codec signs and verifies access tokens
type Codec struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	issuer    string
	audience  string
	leeway    time.Duration
}

// NewCodec builds a codec for HS256 or Ed25519 from cfg
func NewCodec(cfg config.AuthConfig) (*Codec, error) {
	c := &Codec{issuer: cfg.Issuer, audience: cfg.Audience, leeway: cfg.Leeway}

	switch cfg.SigningMethod {
	case "", "hs256":
		if len(cfg.JWTSecret) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
		c.method = jwt.SigningMethodHS256
		c.signKey = []byte(cfg.JWTSecret)
		c.verifyKey = []byte(cfg.JWTSecret)
	case "ed25519":
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err := parseEdPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		c.method = jwt.SigningMethodEdDSA
		c.signKey = priv
		c.verifyKey = pub
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	return c, nil
}

// Sign issues an access token for id valid for ttl
func (c *Codec) Sign(id Identity, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := AccessClaims{
		Epoch: id.OrgEpoch,
		Super: id.IsSuper,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	if id.OrgID != nil {
		claims.Org = id.OrgID.String()
	}
	if c.audience != "" {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry
func (c *Codec) Verify(tokenString string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.leeway),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &AccessClaims{}, func(*jwt.Token) (interface{}, error) {
		return c.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func parseEdPrivateKey(encoded string) (ed25519.PrivateKey, error) {
	raw, err := decodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 private key: %w", err)
	}
	if len(raw) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(raw), nil
	}
	if len(raw) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(raw), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return key, nil
}

func parseEdPublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := decodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 public key: %w", err)
	}
	if len(raw) == ed25519.PublicKeySize {
		return ed25519.PublicKey(raw), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(raw)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	key, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return key, nil
}

// decodeKey accepts base64 (std or url) key material or a PEM block.
func decodeKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, errors.New("empty key")
	}
	if raw, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return raw, nil
	}
	if raw, err := base64.RawURLEncoding.DecodeString(encoded); err == nil {
		return raw, nil
	}
	return []byte(encoded), nil
}
