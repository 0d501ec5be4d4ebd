package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

func TestGenerateAndParse(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()

	token, err := GenerateToken(userID, orgID, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != userID || claims.OrganizationID != orgID {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Issuer != issuer {
		t.Errorf("issuer = %q", claims.Issuer)
	}
}

func TestParseTokenRejects(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()

	expired, err := GenerateToken(userID, orgID, testSecret, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	valid, err := GenerateToken(userID, orgID, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	noOrg, err := GenerateToken(userID, uuid.Nil, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	otherIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:         userID,
		OrganizationID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	foreign, err := otherIssuer.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:         userID,
		OrganizationID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"expired", expired, testSecret},
		{"wrong secret", valid, "other-secret"},
		{"tampered", valid[:len(valid)-2] + "xx", testSecret},
		{"missing organization", noOrg, testSecret},
		{"other issuer", foreign, testSecret},
		{"alg none", none, testSecret},
		{"garbage", "not.a.token", testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); err == nil {
				t.Fatal("ParseToken accepted the token")
			}
		})
	}
}

func TestGenerateTokenEmptySecret(t *testing.T) {
	_, err := GenerateToken(uuid.New(), uuid.New(), "", time.Hour)
	if err == nil || !strings.Contains(err.Error(), "empty secret") {
		t.Errorf("err = %v", err)
	}
}
