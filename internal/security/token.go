package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const serviceIssuer = "roommate-match"

// ServiceClaims authenticate this service against internal collaborators such as the chat service.
type ServiceClaims struct {
	MatchID string `json:"match_id,omitempty"`
	jwt.RegisteredClaims
}

// IssueServiceToken creates a short-lived HS256 token for a call made on behalf of matchID
func IssueServiceToken(secret, audience, matchID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("service secret is empty")
	}

	now := time.Now()
	claims := &ServiceClaims{
		MatchID: matchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    serviceIssuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateServiceToken validates and parses a service token issued for audience
func ValidateServiceToken(tokenString, secret, audience string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(serviceIssuer), jwt.WithAudience(audience))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*ServiceClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
