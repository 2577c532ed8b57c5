package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quic-chat-system/internal/errors"
)

// TokenIssuer signs and validates the bearer tokens carried in the request
// envelope. The secret is loaded once at startup; tokens embed the user id,
// issue time, and expiry.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// Claims is the JWT claim set. The field names match the wire format of the
// tokens clients already hold.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// NewTokenIssuer creates an issuer for HS256 tokens with the given
// lifetime.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// IssueToken encodes a signed token for userID.
func (t *TokenIssuer) IssueToken(userID int64) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, errors.KindInvalidToken)
	}
	return signed, nil
}

// ValidateToken checks signature and expiry and returns the embedded user
// id. Any failure surfaces as KindInvalidToken with the cause in the
// detail.
func (t *TokenIssuer) ValidateToken(tokenString string) (int64, error) {
	if tokenString == "" {
		return 0, errors.Newf(errors.KindInvalidToken, "token is empty")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return 0, errors.Newf(errors.KindInvalidToken, "%v", err)
	}
	if !token.Valid {
		return 0, errors.Newf(errors.KindInvalidToken, "token is not valid")
	}

	return claims.UserID, nil
}
