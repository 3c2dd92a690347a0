package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the JWT claims issued by auth-service.
type Claims struct {
	Sub        string `json:"sub"`
	BusinessID string `json:"business_id"`
	Role       string `json:"role"`
	Exp        int64  `json:"exp"`
	Iat        int64  `json:"iat"`
}

// Expired reports whether the token's exp lies before now. A missing exp never expires.
func (c Claims) Expired(now time.Time) bool {
	return c.Exp > 0 && now.Unix() > c.Exp
}

type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid"`
}

type segments struct {
	header    string
	payload   string
	signature string
}

func (s segments) signingInput() string { return s.header + "." + s.payload }

func split(token string) (segments, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return segments{}, ErrInvalidToken
	}
	return segments{header: parts[0], payload: parts[1], signature: parts[2]}, nil
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return ErrInvalidToken
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrInvalidToken
	}
	return nil
}

func encodeSegment(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func ParseHeader(token string) (*Header, error) {
	segs, err := split(token)
	if err != nil {
		return nil, err
	}
	var header Header
	if err := decodeSegment(segs.header, &header); err != nil {
		return nil, err
	}
	return &header, nil
}

func SignHS256(claims Claims, secret string) (string, error) {
	header, err := encodeSegment(Header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	payload, err := encodeSegment(claims)
	if err != nil {
		return "", err
	}
	unsigned := header + "." + payload
	return unsigned + "." + hmacSHA256(unsigned, secret), nil
}

func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	segs, err := split(token)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(segs.signature), []byte(hmacSHA256(segs.signingInput(), secret))) {
		return nil, ErrInvalidToken
	}
	return verifiedClaims(segs)
}

func VerifyRS256(token string, pubKey crypto.PublicKey) (*Claims, error) {
	segs, err := split(token)
	if err != nil {
		return nil, err
	}
	sig, err := base64.RawURLEncoding.DecodeString(segs.signature)
	if err != nil {
		return nil, ErrInvalidToken
	}
	rsaKey, ok := pubKey.(*rsa.PublicKey)
	if !ok {
		return nil, ErrInvalidToken
	}
	hash := sha256.Sum256([]byte(segs.signingInput()))
	if err := rsa.VerifyPKCS1v15(rsaKey, crypto.SHA256, hash[:], sig); err != nil {
		return nil, ErrInvalidToken
	}
	return verifiedClaims(segs)
}

func verifiedClaims(segs segments) (*Claims, error) {
	var claims Claims
	if err := decodeSegment(segs.payload, &claims); err != nil {
		return nil, err
	}
	if claims.Expired(time.Now()) {
		return nil, ErrTokenExpired
	}
	return &claims, nil
}

func hmacSHA256(data, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
