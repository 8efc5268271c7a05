package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is used when Issue is called with a zero ttl.
const DefaultTokenTTL = 30 * time.Minute

var (
	// ErrTokenExpired is returned when the token's exp lies in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for bad signatures, missing claims and
	// malformed encodings.
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenCodec issues and verifies signed, time-bound identity tokens.
type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewTokenCodec creates a codec signing with HMAC. algorithm is one of
// HS256, HS384 or HS512.
func NewTokenCodec(secret, algorithm string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("signing secret is empty")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	return &TokenCodec{secret: []byte(secret), method: method, now: time.Now}, nil
}

// Issue encodes subject with an absolute expiry of now+ttl.
func (c *TokenCodec) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is empty")
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	if ttl < 0 {
		return "", errors.New("token ttl must be positive")
	}

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(c.now().Add(ttl)),
	}
	return jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
}

// Decode verifies the signature and expiry of token and returns its subject.
func (c *TokenCodec) Decode(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrTokenInvalid)
	}
	return claims.Subject, nil
}
