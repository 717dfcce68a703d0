package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"clube_beneficios/internal/utils" // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// Context keys set by the middlewares
const (
	KeyIdentity = "identity" // utils.Identity of the caller
	KeyUserID   = "userID"   // Subject ID of the caller
	KeyClub     = "club"     // *domain.Club resolved for the request
	KeyTenantDB = "tenantDB" // *gorm.DB of that club
)

// JWTAuthMiddleware validates JWT tokens and extracts the caller identity
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ") // Extract the token string
		claims, err := utils.ParseJWT(tokenStr, secret)       // Parse the JWT token
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(KeyIdentity, claims.Identity) // Store identity in context
		c.Set(KeyUserID, claims.SubjectID)  // Store subject ID in context
		c.Next()                            // Proceed to the next handler
	}
}

// IdentityFrom returns the identity stored by JWTAuthMiddleware
func IdentityFrom(c *gin.Context) (utils.Identity, bool) {
	v, ok := c.Get(KeyIdentity)
	if !ok {
		return utils.Identity{}, false
	}
	id, ok := v.(utils.Identity)
	return id, ok
}
