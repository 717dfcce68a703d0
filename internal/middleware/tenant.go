package middleware

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"clube_beneficios/internal/domain" // Importing domain models
	"clube_beneficios/internal/tenant" // Club resolution

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm"               // GORM ORM library
)

// Headers naming the club on requests that carry no token
const (
	HeaderClubID   = "X-Club-ID"
	HeaderClubSlug = "X-Club-Slug"
)

// TenantMiddleware resolves the club of the request and stores it with its database handle.
// A token bound to a club wins; a header naming another club is refused.
func TenantMiddleware(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var (
			club *domain.Club
			tdb  *gorm.DB
			err  error
		)
		id, hasToken := IdentityFrom(c)
		switch {
		case hasToken && id.ClubID != 0:
			if h := c.GetHeader(HeaderClubID); h != "" && h != strconv.FormatUint(uint64(id.ClubID), 10) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Token belongs to another club"})
				return
			}
			club, tdb, err = resolver.ByID(ctx, id.ClubID)
		case c.GetHeader(HeaderClubID) != "":
			clubID, perr := strconv.ParseUint(c.GetHeader(HeaderClubID), 10, 64)
			if perr != nil || clubID == 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid " + HeaderClubID + " header"})
				return
			}
			club, tdb, err = resolver.ByID(ctx, uint(clubID))
		case c.GetHeader(HeaderClubSlug) != "":
			club, tdb, err = resolver.BySlug(ctx, c.GetHeader(HeaderClubSlug))
		case c.Param("slug") != "":
			club, tdb, err = resolver.BySlug(ctx, c.Param("slug"))
		default:
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Club not specified"})
			return
		}
		if errors.Is(err, tenant.ErrClubNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Club not found"})
			return
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{"path": c.FullPath(), "error": err.Error()}).Error("Tenant resolution failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Club database unavailable"})
			return
		}
		c.Set(KeyClub, club)
		c.Set(KeyTenantDB, tdb)
		c.Next()
	}
}

// RequireModule rejects requests when the club has the module switched off
func RequireModule(module string) gin.HandlerFunc {
	return func(c *gin.Context) {
		club, ok := ClubFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Club not specified"})
			return
		}
		if !club.ModuleEnabled(module) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Module " + module + " is disabled for this club"})
			return
		}
		c.Next()
	}
}

// ClubFrom returns the club stored by TenantMiddleware
func ClubFrom(c *gin.Context) (*domain.Club, bool) {
	v, ok := c.Get(KeyClub)
	if !ok {
		return nil, false
	}
	club, ok := v.(*domain.Club)
	return club, ok
}

// TenantDB returns the club database stored by TenantMiddleware
func TenantDB(c *gin.Context) *gorm.DB {
	if v, ok := c.Get(KeyTenantDB); ok {
		if tdb, ok := v.(*gorm.DB); ok {
			return tdb
		}
	}
	return nil
}
