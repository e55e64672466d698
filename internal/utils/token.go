package utils // package utils provides helpers for minting access tokens

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT in the shape the external
// auth service issues: sub is the actor id as a string, role is one of
// CLIENT, STAFF or ADMIN, and jti is random.  Operators use it through
// cmd/mint-token; tests use it to call the protected API.
func NewAccessToken(secret, subject, role string, ttl time.Duration) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.New("empty signing secret")
	}
	if strings.TrimSpace(subject) == "" {
		return AccessToken{}, errors.New("empty subject")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	jti, err := randomHex(16)
	if err != nil {
		return AccessToken{}, err
	}
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": strings.ToUpper(role),
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
		"jti":  jti,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
