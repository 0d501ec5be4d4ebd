package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "brokerchat"

// Claims is the payload of every access token. Tokens are issued by the
// surrounding platform; this service only verifies them and reads who the
// caller is and which organization they act in.
type Claims struct {
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for the user in the organization.
// Used by cmd/devtoken and the tests.
func GenerateToken(userID, orgID uuid.UUID, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("sign token: empty secret")
	}
	now := time.Now()

	claims := Claims{
		UserID:         userID,
		OrganizationID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken checks the signature, expiry and issuer and returns the claims.
// A token without a user or an organization is rejected.
//
// Why check token.Method ourselves?
//   - The alg header is chosen by whoever made the token. Without the
//     check a token signed "none", or with an RSA key confusion trick,
//     would reach the keyfunc and be treated as ours.
//   - Only HMAC is accepted, matching GenerateToken.
//
// Why WithExpirationRequired?
//   - jwt/v5 treats a missing exp as "never expires". Tokens from the
//     platform always carry one, so a token without it is malformed.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == uuid.Nil || claims.OrganizationID == uuid.Nil {
		return nil, fmt.Errorf("token is missing user or organization")
	}
	return claims, nil
}
