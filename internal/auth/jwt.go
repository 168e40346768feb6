package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = 12 * time.Hour
	operatorSubject = "operator"
)

// OperatorClaims is the JWT body issued to gate operators; Operator holds the login.
type OperatorClaims struct {
	Operator string `json:"op"`
	jwt.RegisteredClaims
}

// SignOperatorToken issues an HS256 token for operator that expires after ttl.
func SignOperatorToken(secret string, operator string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	claims := OperatorClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   operatorSubject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseOperatorToken accepts only HS256 tokens signed with secret that name an operator.
func ParseOperatorToken(secret string, tokenString string) (*OperatorClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*OperatorClaims)
	if !ok || !parsed.Valid || claims.Subject != operatorSubject || claims.Operator == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
