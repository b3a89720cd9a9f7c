package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"campusfeed_backend/feed"
	"campusfeed_backend/models"
	"campusfeed_backend/store"
)

const principalKey = "principal"

// Principal returns the authenticated caller set by AuthMiddleware, or nil
// for anonymous requests.
func Principal(c *gin.Context) *feed.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*feed.Principal); ok {
			return p
		}
	}
	return nil
}

// AuthMiddleware creates a gin middleware for JWT authentication. With
// required=false a missing Authorization header passes through as an
// anonymous request; an invalid token is always rejected.
func AuthMiddleware(s store.Store, jwtSecret []byte, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if required {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
				c.Abort()
				return
			}
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must be in the format: Bearer {token}"})
			c.Abort()
			return
		}

		claims := &models.Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		var user models.User
		if err := s.Get(c.Request.Context(), store.Users, claims.UserID, &user); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
			c.Abort()
			return
		}
		if user.Disabled {
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
			c.Abort()
			return
		}

		c.Set(principalKey, &feed.Principal{
			ID:          user.ID,
			DisplayName: user.Username,
			AvatarURL:   user.AvatarURL,
			Role:        user.Role,
		})
		c.Next()
	}
}

// RequireModerator gates a route to admin/subadmin principals.
func RequireModerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Principal(c).Moderator() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Moderator role required", "reason": "authorization_error"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin gates user administration to full admins.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Principal(c)
		if p == nil || p.Role != models.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin role required", "reason": "authorization_error"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// TokenService handles access/refresh token generation and validation.
// Refresh tokens are persisted as documents so rotation survives restarts.
type TokenService struct {
	Store     store.Store
	JWTSecret []byte
}

func NewTokenService(s store.Store, jwtSecret []byte) *TokenService {
	return &TokenService{Store: s, JWTSecret: jwtSecret}
}

// GenerateTokens creates a new access and refresh token pair
func (s *TokenService) GenerateTokens(ctx context.Context, userID string) (gin.H, error) {
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	accessTokenString, err := accessToken.SignedString(s.JWTSecret)
	if err != nil {
		return nil, err
	}

	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return nil, err
	}
	refresh := models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     hex.EncodeToString(bytes),
		ExpiresAt: time.Now().Add(365 * 24 * time.Hour),
	}
	if err := s.Store.Append(ctx, store.RefreshTokens, refresh.ID, refresh); err != nil {
		return nil, err
	}

	return gin.H{"access_token": accessTokenString, "refresh_token": refresh.Token}, nil
}

// ValidateRefreshToken checks if a refresh token is valid and returns the user ID
func (s *TokenService) ValidateRefreshToken(ctx context.Context, refreshToken string) (string, error) {
	docs, err := s.Store.Find(ctx, store.RefreshTokens, map[string]string{"token": refreshToken})
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", errors.New("refresh token not found")
	}
	var rt models.RefreshToken
	if err := docs[0].Unmarshal(&rt); err != nil {
		return "", err
	}
	if time.Now().After(rt.ExpiresAt) {
		return "", errors.New("refresh token expired")
	}
	return rt.UserID, nil
}

// InvalidateRefreshToken invalidates a refresh token
func (s *TokenService) InvalidateRefreshToken(ctx context.Context, refreshToken string) error {
	docs, err := s.Store.Find(ctx, store.RefreshTokens, map[string]string{"token": refreshToken})
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := s.Store.Delete(ctx, store.RefreshTokens, d.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return nil
}

// VerifyPassword checks if a password matches the hashed version
func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// HashPassword creates a bcrypt hash of a password
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}
