package middleware

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/fieldserve/balance-ledger/internal/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	identityKey contextKey = "ledger_identity"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string // RSA public key in PEM format
}

// LedgerClaims are the JWT claims the ledger relies on. Subject carries
// the user id; company_id scopes every operation to one tenant.
type LedgerClaims struct {
	jwt.RegisteredClaims
	CompanyID string `json:"company_id"`
	UserName  string `json:"user_name"`
}

// Identity is the resolved caller identity. The ledger core treats the
// security layer as an external collaborator whose only contract is
// "return the current company id / user id, or signal unauthenticated".
type Identity struct {
	CompanyID string
	UserID    string
	UserName  string
}

// Auth returns a gin middleware that validates the bearer token and
// stores the resolved identity in the request context. Requests without
// a resolvable company and user id are rejected before any handler runs.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authenticate(c.GetHeader("Authorization"), cfg)
		if err != nil {
			logger.Warn("Authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Authentication failed",
				},
			})
			return
		}

		c.Set(string(identityKey), identity)
		c.Next()
	}
}

// IdentityFromContext returns the identity stored by the Auth middleware
func IdentityFromContext(c *gin.Context) (Identity, bool) {
	value, ok := c.Get(string(identityKey))
	if !ok {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}

// authenticate validates the Authorization header and resolves the caller
func authenticate(authHeader string, cfg AuthConfig) (Identity, error) {
	if authHeader == "" {
		return Identity{}, errors.New("missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return Identity{}, errors.New("invalid Authorization header format")
	}

	claims, err := validateJWT(parts[1], cfg.JWTPublicKey)
	if err != nil {
		return Identity{}, err
	}

	if claims.CompanyID == "" || claims.Subject == "" {
		return Identity{}, errors.New("token does not resolve a company and user")
	}

	return Identity{
		CompanyID: claims.CompanyID,
		UserID:    claims.Subject,
		UserName:  claims.UserName,
	}, nil
}

// validateJWT validates a JWT token with RSA signature and returns claims
func validateJWT(tokenString string, publicKeyPEM string) (*LedgerClaims, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("JWT public key not configured")
	}

	publicKey, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}

	claims := &LedgerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// parseRSAPublicKey parses an RSA public key from PEM format
func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		// Try parsing as PKCS1 format
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not an RSA key")
	}

	return rsaKey, nil
}
