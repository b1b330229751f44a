// Package middleware provides authentication, logging, metrics, tracing and
// rate limiting for the HTTP layer.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"patronage/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrMissingToken = errors.New("authorization required")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrRevokedToken = errors.New("token has been revoked")
)

// TokenVerifier validates HMAC-signed bearer tokens issued by the identity provider.
// Revoked token ids are looked up in Redis under "blacklist:<jti>" when a client is set.
type TokenVerifier struct {
	secret   []byte
	issuer   string
	audience string
	rdb      *redis.Client
}

// NewTokenVerifier creates a verifier for the given secret, issuer and audience.
func NewTokenVerifier(secret, issuer, audience string, rdb *redis.Client) *TokenVerifier {
	return &TokenVerifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		rdb:      rdb,
	}
}

// Verify parses tokenString and returns the user id carried in its subject.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (uint, error) {
	if tokenString == "" {
		return 0, ErrMissingToken
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return 0, ErrInvalidToken
	}

	if claims.ID != "" && v.rdb != nil {
		revoked, err := v.rdb.Exists(ctx, "blacklist:"+claims.ID).Result()
		if err == nil && revoked > 0 {
			return 0, ErrRevokedToken
		}
	}

	return uint(userID), nil
}

// Issue signs a token for userID. It backs the admin CLI and tests; production
// tokens come from the identity provider.
func (v *TokenVerifier) Issue(userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    v.issuer,
		Audience:  jwt.ClaimStrings{v.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired(v *TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := v.Verify(c.UserContext(), BearerToken(c))
		if err != nil {
			msg := "Invalid or expired token"
			switch {
			case errors.Is(err, ErrMissingToken):
				msg = "Authorization required"
			case errors.Is(err, ErrRevokedToken):
				msg = "Token has been revoked"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		}
		setUser(c, userID)
		return c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// every request through.
func OptionalAuth(v *TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, err := v.Verify(c.UserContext(), BearerToken(c)); err == nil {
			setUser(c, userID)
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id from fiber locals.
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("userID").(uint)
	return id, ok && id != 0
}
