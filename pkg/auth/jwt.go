package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const RoleAdmin = "admin"

// Claims is the identity carried by a bearer token. Exp and Iat are Unix
// seconds.
type Claims struct {
	Sub  string
	Role string
	Exp  int64
	Iat  int64
}

func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type tokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SignHS256 issues a token for claims. Tokens are issued by the identity
// service; this is used by tooling and tests. A zero Exp produces a token the
// verifier refuses.
func SignHS256(claims Claims, secret string) (string, error) {
	tc := tokenClaims{
		Role:             claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: claims.Sub},
	}
	if claims.Exp > 0 {
		tc.ExpiresAt = jwt.NewNumericDate(time.Unix(claims.Exp, 0))
	}
	if claims.Iat > 0 {
		tc.IssuedAt = jwt.NewNumericDate(time.Unix(claims.Iat, 0))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString([]byte(secret))
}

// ParseAndVerifyHS256 checks the signature and expiry of token at now. Only
// HS256 is accepted and exp must be present.
func ParseAndVerifyHS256(token, secret string, now time.Time) (*Claims, error) {
	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if tc.Subject == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{Sub: tc.Subject, Role: tc.Role, Exp: tc.ExpiresAt.Unix()}
	if tc.IssuedAt != nil {
		claims.Iat = tc.IssuedAt.Unix()
	}
	return claims, nil
}
