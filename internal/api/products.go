package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"clube_beneficios/internal/domain"     // Importing domain models
	"clube_beneficios/internal/middleware" // Tenant context helpers
	"clube_beneficios/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging
	"gorm.io/gorm"                  // GORM ORM library
)

// ProductRequest is the body for creating or updating a listing; omitted fields keep their value on update
type ProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	CashbackPct *decimal.Decimal `json:"cashback_pct"`
	Stock       *int             `json:"stock"`
	Active      *bool            `json:"active"`
}

func (r ProductRequest) apply(p *domain.Product) {
	if r.Name != nil {
		p.Name = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Price != nil {
		p.Price = *r.Price
	}
	if r.CashbackPct != nil {
		p.CashbackPct = *r.CashbackPct
	}
	if r.Stock != nil {
		p.Stock = *r.Stock
	}
	if r.Active != nil {
		p.Active = *r.Active
	}
}

// ListProductsHandler returns the active catalog of the club, served from Redis when cached
func ListProductsHandler(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, club := caller(c)
		tdb := middleware.TenantDB(c)
		ctx := c.Request.Context()
		page, pageSize := utils.Page(c)
		cacheKey := pageKey(productsPrefix(club.ID), page, pageSize)

		var cached Paged[domain.Product]
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		var total int64 // Total count of active products
		if err := tdb.Model(&domain.Product{}).Where("active = ?", true).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count products"})
			return
		}
		var products []domain.Product
		if err := tdb.Where("active = ?", true).
			Order("id").
			Offset(utils.Offset(page, pageSize)).
			Limit(pageSize).
			Find(&products).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
			return
		}
		resp := newPaged(products, page, pageSize, total)
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, catalogTTL) // Cache the page
		c.JSON(http.StatusOK, resp)
	}
}

// GetProductHandler returns one active product
func GetProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tdb := middleware.TenantDB(c)
		productID, ok := paramID(c, "id")
		if !ok {
			return
		}
		var product domain.Product
		if err := tdb.Where("id = ? AND active = ?", productID, true).First(&product).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

// CreateProductHandler lets a merchant list a product
func CreateProductHandler(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, club := caller(c)
		tdb := middleware.TenantDB(c)
		var req ProductRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		product := domain.Product{MerchantID: id.SubjectID, CashbackPct: decimal.Zero, Active: true}
		req.apply(&product)
		if err := product.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tdb.Create(&product).Error; err != nil {
			logrus.WithFields(logrus.Fields{"club": club.Slug, "merchant_id": id.SubjectID, "error": err.Error()}).Error("Failed to create product")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
			return
		}
		invalidate(c.Request.Context(), rdb, productsPrefix(club.ID))
		c.JSON(http.StatusCreated, gin.H{"product": product})
	}
}

// ownProduct loads a product of the calling merchant, answering 404 for anyone else's
func ownProduct(c *gin.Context, tdb *gorm.DB, merchantID uint) (*domain.Product, bool) {
	productID, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var product domain.Product
	err := tdb.Where("id = ? AND merchant_id = ?", productID, merchantID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return nil, false
	}
	return &product, true
}

// UpdateProductHandler edits one of the merchant's own listings
func UpdateProductHandler(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, club := caller(c)
		tdb := middleware.TenantDB(c)
		product, ok := ownProduct(c, tdb, id.SubjectID)
		if !ok {
			return
		}
		var req ProductRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		req.apply(product)
		if err := product.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tdb.Save(product).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
			return
		}
		invalidate(c.Request.Context(), rdb, productsPrefix(club.ID))
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

// DeleteProductHandler unlists one of the merchant's products; purchase history keeps pointing at it
func DeleteProductHandler(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, club := caller(c)
		tdb := middleware.TenantDB(c)
		product, ok := ownProduct(c, tdb, id.SubjectID)
		if !ok {
			return
		}
		if err := tdb.Model(product).Update("active", false).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
			return
		}
		invalidate(c.Request.Context(), rdb, productsPrefix(club.ID))
		c.JSON(http.StatusOK, gin.H{"message": "Product removed"})
	}
}
