// Auth for the two API planes: JWT for the operator control plane and a
// pre-shared bearer token for the report data plane.
package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ─── JWT control-plane auth ───────────────────────────────────────────────────

// jwtSecret is set once at server start from config.
var jwtSecret []byte

// SetJWTSecret stores the signing key; call this before registering routes.
func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

// Claims is the payload embedded in every JWT issued by /api/login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a signed HS256 JWT valid for 24 hours.
func GenerateJWT(username string) (string, error) {
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "armsentry",
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// parseJWT validates a token string and returns the claims.
func parseJWT(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, err
	}
	return claims, nil
}

// JWTMiddleware is a Gin middleware that validates JWT tokens on the control
// plane. It expects the header:  Authorization: Bearer <jwt>
// On success it stores the username in the Gin context as "username".
func JWTMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing Authorization header",
			})
			return
		}

		parts := strings.SplitN(raw, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid Authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := parseJWT(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// ─── Admin credentials ────────────────────────────────────────────────────────

// adminUser and a bcrypt hash of the admin password, set at startup. The
// plaintext from config never leaves SetAdminCredentials.
var (
	adminUser     string
	adminPassHash []byte
)

// SetAdminCredentials hashes and stores credentials for /api/login.
func SetAdminCredentials(user, pass string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	adminUser = user
	adminPassHash = hash
	return nil
}

// checkAdminCredentials verifies a login attempt.
func checkAdminCredentials(user, pass string) bool {
	if subtle.ConstantTimeCompare([]byte(user), []byte(adminUser)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword(adminPassHash, []byte(pass)) == nil
}

// ─── Bearer-token data-plane auth ────────────────────────────────────────────

// collectorToken is the pre-shared key for monitor → server report pushes.
var collectorToken string

// SetCollectorToken stores the token; call this before registering data-plane routes.
func SetCollectorToken(token string) {
	collectorToken = token
}

// CollectorTokenMiddleware is a lightweight middleware for the data plane.
// It checks: Authorization: Bearer <collector_token>
// Rejects immediately with 401 on any mismatch (no token issuance involved).
func CollectorTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		expected := "Bearer " + collectorToken

		if raw == "" || subtle.ConstantTimeCompare([]byte(raw), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or missing collector token",
			})
			return
		}
		c.Next()
	}
}
