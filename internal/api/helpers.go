package api

import (
	"context"  // Context for Redis operations
	"fmt"      // Key formatting
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"time"     // Cache TTLs

	"clube_beneficios/internal/domain"     // Importing domain models
	"clube_beneficios/internal/middleware" // Context helpers
	"clube_beneficios/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging
)

// Cache lifetimes
const (
	catalogTTL  = time.Minute
	listTTL     = 30 * time.Second
	clubListTTL = time.Minute
)

// Paged is the envelope of every paginated listing
type Paged[T any] struct {
	Items      []T   `json:"items"`       // Page content
	Page       int   `json:"page"`        // Current page
	PageSize   int   `json:"page_size"`   // Page size
	Total      int64 `json:"total"`       // Total number of rows
	TotalPages int   `json:"total_pages"` // Total pages
	Cached     bool  `json:"cached"`      // Served from Redis
}

func newPaged[T any](items []T, page, pageSize int, total int64) Paged[T] {
	if items == nil {
		items = []T{}
	}
	return Paged[T]{Items: items, Page: page, PageSize: pageSize, Total: total, TotalPages: utils.TotalPages(total, pageSize)}
}

// paramID reads a positive numeric path parameter, answering 400 when it is not one
func paramID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(v), true
}

// caller returns the identity and club of an authenticated tenant request
func caller(c *gin.Context) (utils.Identity, *domain.Club) {
	id, _ := middleware.IdentityFrom(c)
	club, _ := middleware.ClubFrom(c)
	return id, club
}

func productsPrefix(clubID uint) string { return utils.ProductsCachePrefix(clubID) }

func purchasesPrefix(clubID, userID uint) string { return utils.PurchasesCachePrefix(clubID, userID) }

func pageKey(prefix string, page, pageSize int) string {
	return fmt.Sprintf("%spage:%d:size:%d", prefix, page, pageSize)
}

// invalidate drops cached listings; failures only cost a stale read until the TTL
func invalidate(ctx context.Context, rdb *redis.Client, prefixes ...string) {
	for _, p := range prefixes {
		if err := utils.DeleteCachePrefix(ctx, rdb, p); err != nil {
			logrus.WithFields(logrus.Fields{"prefix": p, "error": err.Error()}).Warn("Cache invalidation failed")
		}
	}
}
