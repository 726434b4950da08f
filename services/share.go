package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrShareLinksDisabled is returned when no signing secret is configured.
// An empty HMAC key would let anyone forge tokens, so the service refuses
// to mint or accept them.
var ErrShareLinksDisabled = errors.New("share links disabled: no secret configured")

// ShareService mints and validates time-limited download tokens for
// documents. Tokens are signed JWTs so a share link can be redeemed without
// any other request context.
type ShareService struct {
	secret []byte
	ttl    time.Duration
}

type ShareClaims struct {
	DocumentID string `json:"document_id"`
	jwt.RegisteredClaims
}

func NewShareService(secret string, ttl time.Duration) *ShareService {
	return &ShareService{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// TTL returns the configured token lifetime.
func (s *ShareService) TTL() time.Duration {
	return s.ttl
}

// MintToken creates a signed download token for the given document.
func (s *ShareService) MintToken(documentID string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrShareLinksDisabled
	}

	claims := &ShareClaims{
		DocumentID: documentID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyToken validates a share token and returns the document ID it covers.
func (s *ShareService) VerifyToken(token string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrShareLinksDisabled
	}

	claims := &ShareClaims{}

	parsedToken, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsedToken.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.DocumentID == "" {
		return "", fmt.Errorf("token carries no document")
	}

	return claims.DocumentID, nil
}
