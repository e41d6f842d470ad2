package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"transit/internal/domain"
)

var testKey = []byte("middleware-test-secret")

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestParseToken(t *testing.T) {
	valid := Claims{
		ID:   "passenger-1",
		Role: domain.RolePassenger,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	claims, err := ParseToken(sign(t, jwt.SigningMethodHS256, testKey, valid), testKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.ID != "passenger-1" || claims.Role != domain.RolePassenger {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestParseToken_Rejected(t *testing.T) {
	expired := Claims{
		ID:   "passenger-1",
		Role: domain.RolePassenger,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	noRole := Claims{ID: "passenger-1"}
	unknownRole := Claims{ID: "passenger-1", Role: domain.Role("conductor")}
	noID := Claims{Role: domain.RoleDriver}
	good := Claims{ID: "driver-1", Role: domain.RoleDriver}

	tests := []struct {
		name  string
		token string
		key   []byte
	}{
		{"expired", sign(t, jwt.SigningMethodHS256, testKey, expired), testKey},
		{"missing role", sign(t, jwt.SigningMethodHS256, testKey, noRole), testKey},
		{"unknown role", sign(t, jwt.SigningMethodHS256, testKey, unknownRole), testKey},
		{"missing id", sign(t, jwt.SigningMethodHS256, testKey, noID), testKey},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), good), testKey},
		{"unsigned", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, good), testKey},
		{"garbage", "not-a-token", testKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.key); err == nil {
				t.Error("expected token to be rejected")
			}
		})
	}
}
