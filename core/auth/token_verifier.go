package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"patientledger/core/errs"
)

// TokenVerifier turns a bearer token into a verified Identity.
type TokenVerifier struct {
	KeyProvider KeyProvider
	Issuer      string
	Leeway      time.Duration
}

func NewTokenVerifier(secret []byte, issuer string) *TokenVerifier {
	return &TokenVerifier{KeyProvider: StaticKeyProvider{Secret: secret}, Issuer: issuer, Leeway: 30 * time.Second}
}

func (v *TokenVerifier) Verify(tokenString string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.Leeway),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return v.KeyProvider.SigningKey(kid)
	}, opts...)
	if err != nil {
		return Identity{}, errs.Wrap(errs.KindUnauthorized, "auth.verify", "", err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return Identity{}, errs.New(errs.KindUnauthorized, "auth.verify", "")
	}
	if claims.Subject == "" {
		return Identity{}, errs.Wrap(errs.KindUnauthorized, "auth.verify", "", errors.New("token has no subject"))
	}
	return Identity{Subject: claims.Subject}, nil
}

// VerifyHeader accepts an Authorization header value of the form "Bearer <jwt>".
func (v *TokenVerifier) VerifyHeader(header string) (Identity, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Identity{}, errs.Wrap(errs.KindUnauthorized, "auth.verify", "", errors.New("missing bearer token"))
	}
	return v.Verify(strings.TrimSpace(token))
}

// IssueToken signs an HS256 token for subject. Used by tests and the CLI's
// dev mode; production tokens come from the identity provider.
func IssueToken(secret []byte, issuer, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}
