package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signClaims(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func validClaims(userID uint, exp time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": "patronage-api",
		"aud": "patronage-client",
		"exp": time.Now().Add(exp).Unix(),
	}
}

func TestAuthRequired(t *testing.T) {
	app := fiber.New()
	v := NewTokenVerifier(testSecret, "patronage-api", "patronage-client", nil)

	app.Get("/test", AuthRequired(v), func(c *fiber.Ctx) error {
		userID := c.Locals("userID")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"userID": userID})
	})

	wrongIssuer := validClaims(123, time.Hour)
	wrongIssuer["iss"] = "someone-else"
	wrongAudience := validClaims(123, time.Hour)
	wrongAudience["aud"] = "other-client"
	badSubject := validClaims(123, time.Hour)
	badSubject["sub"] = "abc"
	noExpiry := validClaims(123, time.Hour)
	delete(noExpiry, "exp")

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID uint
	}{
		{
			name:           "Happy Path",
			authHeader:     "Bearer " + signClaims(t, validClaims(123, time.Hour), jwt.SigningMethodHS256),
			expectedStatus: http.StatusOK,
			expectedUserID: 123,
		},
		{
			name:           "Missing Header",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Format",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Token",
			authHeader:     "Bearer malformed.token.here",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + signClaims(t, validClaims(123, -time.Hour), jwt.SigningMethodHS256),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Issuer",
			authHeader:     "Bearer " + signClaims(t, wrongIssuer, jwt.SigningMethodHS256),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Audience",
			authHeader:     "Bearer " + signClaims(t, wrongAudience, jwt.SigningMethodHS256),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Non-numeric Subject",
			authHeader:     "Bearer " + signClaims(t, badSubject, jwt.SigningMethodHS256),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Missing Expiry",
			authHeader:     "Bearer " + signClaims(t, noExpiry, jwt.SigningMethodHS256),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, float64(tt.expectedUserID), body["userID"])
			} else {
				assert.Equal(t, "UNAUTHORIZED", body["code"])
			}
		})
	}
}

func TestTokenVerifier_IssueRoundTrip(t *testing.T) {
	v := NewTokenVerifier(testSecret, "patronage-api", "patronage-client", nil)

	token, err := v.Issue(42, time.Minute)
	require.NoError(t, err)

	userID, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)

	other := NewTokenVerifier("another-secret-another-secret-000", "patronage-api", "patronage-client", nil)
	_, err = other.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenVerifier_Revoked(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	v := NewTokenVerifier(testSecret, "patronage-api", "patronage-client", rdb)
	claims := validClaims(7, time.Hour)
	claims["jti"] = "revoked-id"
	token := signClaims(t, claims, jwt.SigningMethodHS256)

	_, err = v.Verify(context.Background(), token)
	require.NoError(t, err)

	require.NoError(t, mr.Set("blacklist:revoked-id", "1"))
	_, err = v.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestOptionalAuth(t *testing.T) {
	app := fiber.New()
	v := NewTokenVerifier(testSecret, "patronage-api", "patronage-client", nil)
	app.Get("/who", OptionalAuth(v), func(c *fiber.Ctx) error {
		id, ok := UserID(c)
		return c.JSON(fiber.Map{"id": id, "ok": ok})
	})

	tests := []struct {
		name   string
		header string
		wantOK bool
	}{
		{"anonymous", "", false},
		{"garbage token", "Bearer nope", false},
		{"valid token", "Bearer " + signClaims(t, validClaims(9, time.Hour), jwt.SigningMethodHS256), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantOK, body["ok"])
		})
	}
}
