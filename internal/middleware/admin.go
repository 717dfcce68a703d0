package middleware

import (
	"net/http" // HTTP status codes

	"clube_beneficios/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// RequireRoles lets through only tokens carrying one of the roles
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	}
}

// SuperAdminOnlyMiddleware checks the super admin still exists in the master database on each request
func SuperAdminOnlyMiddleware(master *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if id.Role != domain.RoleSuperAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Super admin access required"})
			return
		}
		var admin domain.SuperAdmin // Fetch admin from database
		if err := master.WithContext(c.Request.Context()).Select("id").First(&admin, id.SubjectID).Error; err != nil {
			// Removed admins keep a valid token until it expires
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Super admin access required"})
			return
		}
		c.Next()
	}
}

// ClubAdminActiveMiddleware checks on each request that the club admin still exists in the
// master database with the club and role the token was issued for
func ClubAdminActiveMiddleware(master *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if id.Role != domain.RoleClubAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		var admin domain.ClubAdmin // Fetch admin from database
		err := master.WithContext(c.Request.Context()).
			Select("id").
			Where("id = ? AND club_id = ? AND role = ?", id.SubjectID, id.ClubID, id.ClubRole).
			First(&admin).Error
		if err != nil {
			// Removed, moved or demoted admins must sign in again
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Club admin access revoked"})
			return
		}
		c.Next()
	}
}

// RequirePermission checks the club admin role grants perm
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if id.Role != domain.RoleClubAdmin || !domain.HasPermission(id.ClubRole, perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Missing permission " + perm})
			return
		}
		c.Next()
	}
}
