package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoUsername = errors.New("token carries no username")

type Claims struct {
	Username string `json:"unique_name"`
	jwt.RegisteredClaims
}

// TokenSource supplies the access token for each (re)connect.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken always returns the same token. An empty token means anonymous.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

func Sign(secret []byte, username string, ttl time.Duration) (string, error) {
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func Verify(secret []byte, token string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// UsernameFromToken reads the username out of an access token without
// checking its signature. The backend verifies the token; the client only
// needs to know who it is.
func UsernameFromToken(token string) (string, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", err
	}
	if claims.Username != "" {
		return claims.Username, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", ErrNoUsername
}
