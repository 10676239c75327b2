package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"seedmart_backend/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types and lifetimes
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
)

// Claims are the JWT claims issued by this service. The type claim
// keeps refresh tokens off access-token routes and vice versa.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
}

// GenerateTokenPair issues an access and a refresh token for a user
func GenerateTokenPair(userID uint) (string, string, error) {
	access, err := generateToken(userID, TokenTypeAccess, AccessTokenTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err := generateToken(userID, TokenTypeRefresh, RefreshTokenTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// GenerateAccessToken issues a fresh access token for a user
func GenerateAccessToken(userID uint) (string, error) {
	return generateToken(userID, TokenTypeAccess, AccessTokenTTL)
}

func generateToken(userID uint, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret())
}

// ValidateToken parses a token and checks its signature, expiry and type
func ValidateToken(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("expected %s token, got %s token", wantType, claims.TokenType)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("token has expired")
	}
	return claims, nil
}

// JWTAuthMiddleware validates bearer access tokens
func JWTAuthMiddleware() gin.HandlerFunc {
	return requireToken(TokenTypeAccess)
}

// RefreshAuthMiddleware validates bearer refresh tokens
func RefreshAuthMiddleware() gin.HandlerFunc {
	return requireToken(TokenTypeRefresh)
}

func requireToken(tokenType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>" format
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format. Use: Bearer <token>"})
			c.Abort()
			return
		}

		claims, err := ValidateToken(tokenString, tokenType)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, err := strconv.ParseUint(claims.Subject, 10, 32)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token subject"})
			c.Abort()
			return
		}

		c.Set("user_id", uint(userID))
		c.Set("claims", claims)
		c.Next()
	}
}

// UserIDFromContext gets the authenticated user ID from context
func UserIDFromContext(c *gin.Context) (uint, error) {
	userID, exists := c.Get("user_id")
	if !exists {
		return 0, errors.New("user not authenticated")
	}
	return userID.(uint), nil
}

func jwtSecret() []byte {
	if config.AppConfig != nil && config.AppConfig.JWTSecret != "" {
		return []byte(config.AppConfig.JWTSecret)
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("dev-key-for-testing")
}
