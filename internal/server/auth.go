package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"chirp/internal/middleware"
	"chirp/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sessionCookieName = "chirp_session"
	sessionUserKey    = "userID"
	sessionNameKey    = "username"

	tokenIssuer   = "chirp-api"
	tokenAudience = "chirp-client"
	tokenTTL      = 7 * 24 * time.Hour

	revokedTokenPrefix = "blacklist:"
)

var errNoCredentials = errors.New("no credentials")

// AuthRequired rejects requests without a valid session cookie or bearer
// token. On success the user id is stored in c.Locals("userID") and in the
// request context.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := s.resolveUser(c)
		if err != nil {
			msg := "authentication required"
			if !errors.Is(err, errNoCredentials) {
				msg = "invalid or expired token"
			}
			return respondError(c, models.NewUnauthorizedError(msg))
		}
		setCurrentUser(c, userID)
		return c.Next()
	}
}

// OptionalAuth resolves the viewer when credentials are present and valid,
// and lets the request through either way.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, err := s.resolveUser(c); err == nil {
			setCurrentUser(c, userID)
		}
		return c.Next()
	}
}

func setCurrentUser(c *fiber.Ctx, userID string) {
	c.Locals("userID", userID)
	c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
}

// currentUserID returns the authenticated user id, or "" for anonymous requests.
func currentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}

// resolveUser prefers a bearer token and falls back to the session cookie.
func (s *Server) resolveUser(c *fiber.Ctx) (string, error) {
	if token, ok := bearerToken(c); ok {
		return s.parseToken(c, token)
	}

	sess, err := s.sessions.Get(c)
	if err != nil {
		return "", err
	}
	userID, _ := sess.Get(sessionUserKey).(string)
	if userID == "" {
		return "", errNoCredentials
	}
	return userID, nil
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}

// parseToken validates signature, issuer, audience, expiry and revocation and
// returns the subject.
func (s *Server) parseToken(c *fiber.Ctx, tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("invalid subject: %w", err)
	}

	if claims.ID != "" && s.redis != nil {
		revoked, err := s.redis.Exists(c.UserContext(), revokedTokenPrefix+claims.ID).Result()
		if err == nil && revoked > 0 {
			return "", errors.New("token has been revoked")
		}
	}
	return claims.Subject, nil
}

// generateToken signs a bearer token for userID.
func (s *Server) generateToken(userID string) (string, error) {
	if s.config.JWTSecret == "" {
		return "", errors.New("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{tokenAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
}

// revokeToken blacklists a bearer token until it would have expired anyway.
// Without Redis revocation is unavailable and tokens live until expiry.
func (s *Server) revokeToken(c *fiber.Ctx, tokenString string) {
	if s.redis == nil {
		return
	}
	claims := jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	}); err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return
	}
	if err := s.redis.Set(c.UserContext(), revokedTokenPrefix+claims.ID, "1", ttl).Err(); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "failed to revoke token", "error", err)
	}
}

// startSession stores userID in a fresh session, rotating the session id.
func (s *Server) startSession(c *fiber.Ctx, user *models.User) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(sessionUserKey, user.ID)
	sess.Set(sessionNameKey, user.Username)
	return sess.Save()
}
