package auth

import (
	"errors"
	"strings"
)

// Verifier checks bearer tokens issued by auth-service. RS256 tokens carrying a
// key id are verified against the JWKS when one is configured; everything else
// falls back to the shared HS256 secret.
type Verifier struct {
	secret string
	jwks   *JWKSClient
}

func NewVerifier(secret string, jwks *JWKSClient) *Verifier {
	return &Verifier{secret: secret, jwks: jwks}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

func (v *Verifier) Verify(token string) (*Claims, error) {
	if v == nil {
		return nil, ErrInvalidToken
	}
	if v.jwks != nil {
		header, err := ParseHeader(token)
		if err != nil {
			return nil, err
		}
		if header.Alg == "RS256" && header.Kid != "" {
			pub, err := v.jwks.Get(header.Kid)
			if err != nil {
				return nil, errors.Join(ErrInvalidToken, err)
			}
			return VerifyRS256(token, pub)
		}
	}
	if v.secret == "" {
		return nil, ErrInvalidToken
	}
	return ParseAndVerifyHS256(token, v.secret)
}
