package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/getzep/entitylink/config"
)

const JwtAlg = "HS256"

var ErrSecretNotSet = errors.New(
	"auth secret not set. Ensure ENTITYLINK_AUTH_SECRET is set in your environment",
)

// GenerateJWT generates a JWT token signed with the configured auth secret.
func GenerateJWT(cfg *config.Config) (string, error) {
	tokenAuth, err := newTokenAuth(cfg)
	if err != nil {
		return "", err
	}

	_, tokenString, err := tokenAuth.Encode(nil)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// JWTVerifier returns middleware that extracts and verifies a bearer token.
// Pair it with jwtauth.Authenticator to reject unauthenticated requests.
func JWTVerifier(cfg *config.Config) (func(http.Handler) http.Handler, error) {
	tokenAuth, err := newTokenAuth(cfg)
	if err != nil {
		return nil, err
	}
	return jwtauth.Verifier(tokenAuth), nil
}

func newTokenAuth(cfg *config.Config) (*jwtauth.JWTAuth, error) {
	secret := []byte(cfg.Auth.Secret)
	if len(secret) == 0 {
		return nil, ErrSecretNotSet
	}
	return jwtauth.New(JwtAlg, secret, nil), nil
}
