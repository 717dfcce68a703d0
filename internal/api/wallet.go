package api

import (
	"net/http" // HTTP status codes

	"clube_beneficios/internal/domain"     // Importing domain models
	"clube_beneficios/internal/middleware" // Tenant context helpers
	"clube_beneficios/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money
	"gorm.io/gorm"                  // GORM ORM library
)

// MeResponse is the profile of the signed in user with their cashback wallet
type MeResponse struct {
	User             domain.User     `json:"user"`              // Profile
	Club             string          `json:"club"`              // Club slug
	CashbackBalance  decimal.Decimal `json:"cashback_balance"`  // Current balance
	CashbackReceived decimal.Decimal `json:"cashback_received"` // Lifetime cashback credited
	Referrals        int64           `json:"referrals"`         // Users invited
}

// MeHandler returns the authenticated user's profile and cashback balance
func MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, club := caller(c)
		tdb := middleware.TenantDB(c)
		var user domain.User // Fetch user from database
		if err := tdb.First(&user, id.SubjectID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		var received struct{ Sum decimal.NullDecimal }
		if err := tdb.Model(&domain.CashbackDistribution{}).
			Select("SUM(amount) AS sum").
			Where("user_id = ?", user.ID).
			Scan(&received).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cashback"})
			return
		}
		var referrals int64
		if err := tdb.Model(&domain.User{}).Where("referrer_id = ?", user.ID).Count(&referrals).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count referrals"})
			return
		}
		total := decimal.Zero
		if received.Sum.Valid {
			total = received.Sum.Decimal
		}
		c.JSON(http.StatusOK, MeResponse{
			User:             user,
			Club:             club.Slug,
			CashbackBalance:  user.CashbackBalance,
			CashbackReceived: total,
			Referrals:        referrals,
		})
	}
}

// CashbackHistoryHandler lists the cashback credited to the authenticated user, newest first
func CashbackHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := caller(c)
		tdb := middleware.TenantDB(c)
		page, pageSize := utils.Page(c)
		q := tdb.Model(&domain.CashbackDistribution{}).Where("user_id = ?", id.SubjectID).Session(&gorm.Session{})
		var total int64 // Total count of distributions
		if err := q.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count cashback"})
			return
		}
		var rows []domain.CashbackDistribution
		if err := q.Order("created_at desc").Order("id desc").
			Offset(utils.Offset(page, pageSize)).Limit(pageSize).
			Find(&rows).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cashback"})
			return
		}
		c.JSON(http.StatusOK, newPaged(rows, page, pageSize, total))
	}
}
