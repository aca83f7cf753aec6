// Package auth implements the bearer/API-key authentication described in
// spec §6: "Authentication is by Authorization: Bearer <token> or
// ApiKey <token> or X-API-Key; absent token is allowed only for public
// read endpoints." Grounded on internal/auth/auth.go's JWT issuing and
// gin middleware shape, trimmed of the teacher's Privy/external-IdP and
// user-registration specifics (no user-account system exists in this
// domain — debate clients and services authenticate directly, not
// through registered accounts).
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Principal identifies the authenticated caller, whether it reached the
// API via a bearer token or a configured API key.
type Principal struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Claims is the JWT claim set for internally issued bearer tokens.
type Claims struct {
	PrincipalID string `json:"pid"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// Config contains authentication configuration.
type Config struct {
	JWTSecret     string
	TokenDuration time.Duration
	// APIKeys maps a configured key value to the principal it
	// authenticates as (spec §6 ApiKey/X-API-Key schemes).
	APIKeys map[string]Principal
}

// Auth handles bearer-token issuing/validation and API-key lookup.
type Auth struct {
	config Config
}

// New creates a new Auth instance.
func New(config Config) *Auth {
	if config.APIKeys == nil {
		config.APIKeys = map[string]Principal{}
	}
	return &Auth{config: config}
}

// GetConfig returns the authentication configuration.
func (a *Auth) GetConfig() Config { return a.config }

// GenerateToken issues a signed bearer token for principal.
func (a *Auth) GenerateToken(principal Principal) (string, time.Time, error) {
	expiresAt := time.Now().Add(a.config.TokenDuration)
	claims := &Claims{
		PrincipalID: principal.ID,
		Role:        principal.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "aragora",
			Subject:   principal.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(a.config.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken parses and validates an HS256 bearer token.
func (a *Auth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.config.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("failed to extract claims")
	}
	return claims, nil
}

// ValidateAPIKey looks up key among the configured API keys.
func (a *Auth) ValidateAPIKey(key string) (Principal, bool) {
	p, ok := a.config.APIKeys[key]
	return p, ok
}

// GenerateRandomKey generates a random key, suitable for minting new API
// keys or JWT secrets.
func GenerateRandomKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

func (a *Auth) authenticate(c *gin.Context) (Principal, bool) {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return a.ValidateAPIKey(key)
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return Principal{}, false
	}
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found {
		return Principal{}, false
	}

	switch scheme {
	case "Bearer":
		claims, err := a.ValidateToken(token)
		if err != nil {
			return Principal{}, false
		}
		return Principal{ID: claims.PrincipalID, Role: claims.Role}, true
	case "ApiKey":
		return a.ValidateAPIKey(token)
	default:
		return Principal{}, false
	}
}

// AuthMiddleware requires a valid Bearer token, ApiKey, or X-API-Key.
func (a *Auth) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := a.authenticate(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		setPrincipal(c, principal)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches a principal to the context when
// credentials are present and valid, but never rejects the request
// (spec §6: "absent token is allowed only for public read endpoints").
func (a *Auth) OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal, ok := a.authenticate(c); ok {
			setPrincipal(c, principal)
		}
		c.Next()
	}
}

// RequireRole requires an authenticated principal with the given role
// (or "admin", which can access everything).
func (a *Auth) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principalRole, exists := GetRole(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		if principalRole != role && principalRole != "admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func setPrincipal(c *gin.Context, p Principal) {
	c.Set("principalID", p.ID)
	c.Set("role", p.Role)
}

// GetPrincipalID gets the authenticated principal's id from the context.
func GetPrincipalID(c *gin.Context) (string, bool) {
	v, exists := c.Get("principalID")
	if !exists {
		return "", false
	}
	return v.(string), true
}

// GetRole gets the authenticated principal's role from the context.
func GetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get("role")
	if !exists {
		return "", false
	}
	return v.(string), true
}
