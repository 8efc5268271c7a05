package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	c, err := NewTokenCodec("super-secret", "HS256")
	require.NoError(t, err)
	return c
}

func TestNewTokenCodec_Rejects(t *testing.T) {
	_, err := NewTokenCodec("", "HS256")
	assert.Error(t, err)

	_, err = NewTokenCodec("k", "RS256")
	assert.Error(t, err)

	_, err = NewTokenCodec("k", "none")
	assert.Error(t, err)
}

func TestIssueDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	subjects := []string{"user-123", "8d2f6a0e-6c43-4b8e-9a8e-1f0c2c9b7d11", "Ä b c", "x"}
	ttls := []time.Duration{time.Second, time.Minute, 24 * time.Hour}

	for _, sub := range subjects {
		for _, ttl := range ttls {
			tok, err := c.Issue(sub, ttl)
			require.NoError(t, err)

			got, err := c.Decode(tok)
			require.NoError(t, err)
			assert.Equal(t, sub, got)
		}
	}
}

func TestIssue_DefaultTTL(t *testing.T) {
	c := newTestCodec(t)
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	tok, err := c.Issue("u1", 0)
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(DefaultTokenTTL).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, "u1", claims.Subject)
}

func TestIssue_RejectsBadInput(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Issue("", time.Minute)
	assert.Error(t, err)

	_, err = c.Issue("u1", -time.Minute)
	assert.Error(t, err)
}

func TestDecode_Expired(t *testing.T) {
	c := newTestCodec(t)
	issuedAt := time.Now()
	c.now = func() time.Time { return issuedAt }

	tok, err := c.Issue("u1", time.Minute)
	require.NoError(t, err)

	c.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = c.Decode(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestDecode_ForgedExpiredIsInvalid(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewTokenCodec("wrong-secret", "HS256")
	require.NoError(t, err)

	issuedAt := time.Now()
	other.now = func() time.Time { return issuedAt }
	forged, err := other.Issue("u1", time.Minute)
	require.NoError(t, err)

	c.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = c.Decode(forged)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestDecode_Invalid(t *testing.T) {
	c := newTestCodec(t)
	good, err := c.Issue("u1", time.Hour)
	require.NoError(t, err)

	other, err := NewTokenCodec("wrong-secret", "HS256")
	require.NoError(t, err)
	foreign, err := other.Issue("u1", time.Hour)
	require.NoError(t, err)

	hs512, err := NewTokenCodec("super-secret", "HS512")
	require.NoError(t, err)
	otherAlg, err := hs512.Issue("u1", time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).
		SignedString([]byte("super-secret"))
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := map[string]string{
		"wrong secret":      foreign,
		"other algorithm":   otherAlg,
		"missing exp":       noExp,
		"missing sub":       noSub,
		"malformed":         "not.a.jwt",
		"empty":             "",
		"tampered payload":  tampered,
		"unsigned none alg": unsignedToken(t),
	}

	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode(tok)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func unsignedToken(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return tok
}
