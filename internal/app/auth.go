package app

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxRole   = "auth.role"
	ctxTenant = "auth.tenant"

	RoleAdmin   = "admin"
	RoleClient  = "client"
	RoleService = "service"
)

// Claims carried by bearer JWTs. Tenant restricts the token to one tenant.
type Claims struct {
	Role   string `json:"role,omitempty"`
	Tenant string `json:"tenant,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware accepts static service tokens or HS256 JWTs.
func AuthMiddleware(jwtSecret string, staticTokens []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		tokenStr := parts[1]

		// JWT path
		if jwtSecret != "" {
			var claims Claims
			_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(jwtSecret), nil
			}, jwt.WithLeeway(5*time.Second), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
			if err == nil {
				role := claims.Role
				if role == "" {
					role = RoleClient
				}
				c.Set(ctxRole, role)
				c.Set(ctxTenant, claims.Tenant)
				c.Next()
				return
			}
		}

		// static tokens
		for _, t := range staticTokens {
			if tokenStr == strings.TrimSpace(t) {
				c.Set(ctxRole, RoleService)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

// tenantAccess rejects tokens scoped to a different tenant than the request's.
func tenantAccess(c *gin.Context, tenantID string) bool {
	scoped := c.GetString(ctxTenant)
	if scoped != "" && scoped != tenantID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token not valid for this tenant"})
		return false
	}
	return true
}

func requireTenantAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !tenantAccess(c, c.Param("id")) {
			return
		}
		c.Next()
	}
}

func requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxRole)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// stateClaims is the signed OAuth state binding a consent flow to a tenant.
type stateClaims struct {
	Tenant string `json:"tenant"`
	jwt.RegisteredClaims
}

var errInvalidState = errors.New("invalid oauth state")

func signState(secret []byte, tenantID string, now time.Time) (string, error) {
	claims := stateClaims{
		Tenant: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseState(secret []byte, state string, now time.Time) (string, error) {
	var claims stateClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil || claims.Tenant == "" {
		return "", errInvalidState
	}
	return claims.Tenant, nil
}
