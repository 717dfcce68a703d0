package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"time"     // Event timestamps

	"clube_beneficios/internal/cashback"   // Cashback split
	"clube_beneficios/internal/domain"     // Importing domain models
	"clube_beneficios/internal/events"     // Broker messages
	"clube_beneficios/internal/metrics"    // Prometheus collectors
	"clube_beneficios/internal/middleware" // Tenant context helpers
	"clube_beneficios/internal/service"    // Purchase operations
	"clube_beneficios/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/google/uuid"        // Event IDs
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging
)

// PurchaseRequest represents a purchase request
type PurchaseRequest struct {
	ProductID uint `json:"product_id" binding:"required"` // Product to buy
	Quantity  int  `json:"quantity"`                      // Defaults to 1
}

// purchaseError maps service errors to HTTP statuses
func purchaseError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrPurchaseNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrInsufficientStock), errors.Is(err, service.ErrNotCancellable):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrSelfPurchase):
		return http.StatusForbidden, err.Error()
	}
	return http.StatusInternalServerError, "Purchase failed"
}

// CreatePurchaseHandler buys a product and queues its cashback distribution
func CreatePurchaseHandler(pub events.Publisher, rdb *redis.Client, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, club := caller(c)
		tdb := middleware.TenantDB(c)
		var req PurchaseRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		ctx := c.Request.Context()
		purchase, err := service.CreatePurchase(ctx, tdb, id.SubjectID, req.ProductID, req.Quantity, club.CashbackEnabled)
		if err != nil {
			status, msg := purchaseError(err)
			if status == http.StatusInternalServerError {
				m.Purchase("error")
				logrus.WithFields(logrus.Fields{
					"club":       club.Slug,    // Club slug
					"user_id":    id.SubjectID, // Buyer
					"product_id": req.ProductID,
					"error":      err.Error(),
				}).Error("Purchase failed")
			} else {
				m.Purchase("rejected")
			}
			c.JSON(status, gin.H{"error": msg})
			return
		}
		m.Purchase("completed")
		logrus.WithFields(logrus.Fields{
			"club":        club.Slug,               // Club slug
			"user_id":     id.SubjectID,            // Buyer
			"purchase_id": purchase.ID,             // New purchase
			"total":       purchase.Total.String(), // Amount paid
		}).Info("Purchase completed")

		if purchase.CashbackStatus == domain.CashbackPending {
			ev := events.PurchaseCompleted{
				EventID:    uuid.NewString(),
				ClubID:     club.ID,
				PurchaseID: purchase.ID,
				OccurredAt: time.Now().UTC(),
			}
			if err := pub.PublishJSON(ctx, events.RKPurchaseCompleted, ev); err != nil {
				// The purchase stands; the pending cashback sweeper republishes it later
				logrus.WithFields(logrus.Fields{"purchase_id": purchase.ID, "error": err.Error()}).Error("Failed to publish purchase event")
			} else if err := tdb.First(purchase, purchase.ID).Error; err != nil { // Pick up an inline distribution
				logrus.WithFields(logrus.Fields{"purchase_id": purchase.ID, "error": err.Error()}).Warn("Failed to reload purchase after publishing")
			}
		}
		invalidate(ctx, rdb, productsPrefix(club.ID), purchasesPrefix(club.ID, id.SubjectID))
		c.JSON(http.StatusCreated, gin.H{"purchase": purchase})
	}
}

// ListPurchasesHandler returns the authenticated user's purchases (invoices), newest first
func ListPurchasesHandler(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, club := caller(c)
		tdb := middleware.TenantDB(c)
		ctx := c.Request.Context()
		page, pageSize := utils.Page(c)
		cacheKey := pageKey(purchasesPrefix(club.ID, id.SubjectID), page, pageSize)

		var cached Paged[domain.Purchase]
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		var total int64 // Total count of purchases
		if err := tdb.Model(&domain.Purchase{}).Where("user_id = ?", id.SubjectID).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count purchases"})
			return
		}
		var purchases []domain.Purchase
		if err := tdb.Where("user_id = ?", id.SubjectID).
			Order("created_at desc").Order("id desc").
			Offset(utils.Offset(page, pageSize)).
			Limit(pageSize).
			Find(&purchases).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch purchases"})
			return
		}
		resp := newPaged(purchases, page, pageSize, total)
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, listTTL) // Cache the page
		c.JSON(http.StatusOK, resp)
	}
}

// GetPurchaseHandler returns one of the user's purchases with its cashback distribution
func GetPurchaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := caller(c)
		tdb := middleware.TenantDB(c)
		purchaseID, ok := paramID(c, "id")
		if !ok {
			return
		}
		var purchase domain.Purchase
		// Other users' purchases look exactly like missing ones
		if err := tdb.Where("id = ? AND user_id = ?", purchaseID, id.SubjectID).First(&purchase).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Purchase not found"})
			return
		}
		var shares []domain.CashbackDistribution
		if err := tdb.Where("purchase_id = ?", purchase.ID).Order("id").Find(&shares).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cashback"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"purchase": purchase, "cashback": shares})
	}
}

// CancelPurchaseHandler cancels one of the user's purchases while its cashback is still unpaid
func CancelPurchaseHandler(rdb *redis.Client, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, club := caller(c)
		tdb := middleware.TenantDB(c)
		purchaseID, ok := paramID(c, "id")
		if !ok {
			return
		}
		var count int64
		if err := tdb.Model(&domain.Purchase{}).Where("id = ? AND user_id = ?", purchaseID, id.SubjectID).Count(&count).Error; err != nil || count == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Purchase not found"})
			return
		}
		ctx := c.Request.Context()
		purchase, err := service.CancelPurchase(ctx, tdb, purchaseID)
		if err != nil {
			status, msg := purchaseError(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		m.Purchase("cancelled")
		logrus.WithFields(logrus.Fields{"club": club.Slug, "purchase_id": purchase.ID}).Info("Purchase cancelled")
		invalidate(ctx, rdb, productsPrefix(club.ID), purchasesPrefix(club.ID, id.SubjectID))
		c.JSON(http.StatusOK, gin.H{"purchase": purchase})
	}
}

// FeesResponse describes what the club charges and how cashback is shared
type FeesResponse struct {
	PlatformFeePct  decimal.Decimal `json:"platform_fee_pct"` // Fee kept by the platform on each sale
	CashbackEnabled bool            `json:"cashback_enabled"` // Cashback module state
	ConsumerPct     decimal.Decimal `json:"consumer_pct"`     // Buyer share of the cashback
	PlatformPct     decimal.Decimal `json:"platform_pct"`     // Platform share of the cashback
	ReferrerPct     decimal.Decimal `json:"referrer_pct"`     // Direct referrer share
	UplinePct       decimal.Decimal `json:"upline_pct"`       // Referrer's referrer share
}

// FeesHandler returns the club fee and the cashback split
func FeesHandler(split cashback.Split) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, club := caller(c)
		c.JSON(http.StatusOK, FeesResponse{
			PlatformFeePct:  club.PlatformFeePct,
			CashbackEnabled: club.CashbackEnabled,
			ConsumerPct:     split.Consumer,
			PlatformPct:     split.Platform,
			ReferrerPct:     split.Referrer,
			UplinePct:       split.Upline,
		})
	}
}
