package api

import (
	"encoding/csv" // CSV export
	"fmt"          // Formatting
	"net/http"     // HTTP status codes
	"strconv"      // String conversion
	"time"         // Date filters

	"clube_beneficios/internal/domain"     // Importing domain models
	"clube_beneficios/internal/middleware" // Tenant context helpers
	"clube_beneficios/internal/reconcile"  // Exchange order sync
	"clube_beneficios/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging
	"gorm.io/gorm"                  // GORM ORM library
)

const exportBatch = 500 // Rows fetched per query while streaming the CSV

// ListClubUsersHandler lists the club's users, optionally filtered by name or email
func ListClubUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tdb := middleware.TenantDB(c)
		page, pageSize := utils.Page(c)
		q := tdb.Model(&domain.User{})
		if s := c.Query("q"); s != "" {
			like := "%" + s + "%"
			q = q.Where("name LIKE ? OR email LIKE ?", like, like)
		}
		q = q.Session(&gorm.Session{})
		var total int64 // Total user count
		if err := q.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"})
			return
		}
		var users []domain.User
		if err := q.Order("id").Offset(utils.Offset(page, pageSize)).Limit(pageSize).Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
			return
		}
		c.JSON(http.StatusOK, newPaged(users, page, pageSize, total))
	}
}

// reportRange reads the from/to query dates (YYYY-MM-DD, to inclusive)
func reportRange(c *gin.Context) (from, to time.Time, err error) {
	if s := c.Query("from"); s != "" {
		if from, err = time.Parse(time.DateOnly, s); err != nil {
			return from, to, fmt.Errorf("invalid from date %q", s)
		}
	}
	if s := c.Query("to"); s != "" {
		if to, err = time.Parse(time.DateOnly, s); err != nil {
			return from, to, fmt.Errorf("invalid to date %q", s)
		}
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, fmt.Errorf("from must not be after to")
	}
	return from, to, nil
}

func purchasesInRange(tdb *gorm.DB, from, to time.Time) *gorm.DB {
	q := tdb.Table("purchases")
	if !from.IsZero() {
		q = q.Where("purchases.created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("purchases.created_at < ?", to)
	}
	return q
}

// StatusSummary aggregates purchases sharing a status
type StatusSummary struct {
	Status   string              `json:"status"`
	Count    int64               `json:"count"`
	Total    decimal.NullDecimal `json:"total"`
	Cashback decimal.NullDecimal `json:"cashback"`
}

// ReportRow is a purchase joined with its buyer and product
type ReportRow struct {
	domain.Purchase
	UserEmail   string `json:"user_email"`
	ProductName string `json:"product_name"`
}

func reportRows(q *gorm.DB) *gorm.DB {
	return q.Select("purchases.*, users.email AS user_email, products.name AS product_name").
		Joins("LEFT JOIN users ON users.id = purchases.user_id").
		Joins("LEFT JOIN products ON products.id = purchases.product_id")
}

// PurchasesReportHandler summarises purchases by status and lists them page by page
func PurchasesReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tdb := middleware.TenantDB(c)
		from, to, err := reportRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var summary []StatusSummary
		if err := purchasesInRange(tdb, from, to).
			Select("status, COUNT(*) AS count, SUM(total) AS total, SUM(cashback_total) AS cashback").
			Group("status").Order("status").
			Scan(&summary).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
			return
		}
		var total int64
		for _, s := range summary {
			total += s.Count
		}
		page, pageSize := utils.Page(c)
		var rows []ReportRow
		if err := reportRows(purchasesInRange(tdb, from, to)).
			Order("purchases.id desc").
			Offset(utils.Offset(page, pageSize)).Limit(pageSize).
			Find(&rows).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch purchases"})
			return
		}
		if summary == nil {
			summary = []StatusSummary{}
		}
		c.JSON(http.StatusOK, gin.H{"summary": summary, "purchases": newPaged(rows, page, pageSize, total)})
	}
}

var csvHeader = []string{
	"id", "created_at", "user_id", "user_email", "product_id", "product_name",
	"quantity", "unit_price", "total", "cashback_total", "status", "cashback_status",
}

// ExportPurchasesCSVHandler streams the purchases in range as CSV, oldest first
func ExportPurchasesCSVHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, club := caller(c)
		tdb := middleware.TenantDB(c)
		from, to, err := reportRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filename := fmt.Sprintf("purchases-%s-%s.csv", club.Slug, time.Now().UTC().Format("20060102"))
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Status(http.StatusOK)

		w := csv.NewWriter(c.Writer)
		_ = w.Write(csvHeader)
		var lastID uint
		written := 0
		for {
			var batch []ReportRow
			if err := reportRows(purchasesInRange(tdb, from, to)).
				Where("purchases.id > ?", lastID).
				Order("purchases.id").Limit(exportBatch).
				Find(&batch).Error; err != nil {
				// Headers are gone already; the truncated file is all we can signal
				logrus.WithFields(logrus.Fields{"club": club.Slug, "error": err.Error()}).Error("CSV export failed")
				break
			}
			for _, r := range batch {
				_ = w.Write([]string{
					strconv.FormatUint(uint64(r.ID), 10),
					r.CreatedAt.UTC().Format(time.RFC3339),
					strconv.FormatUint(uint64(r.UserID), 10),
					r.UserEmail,
					strconv.FormatUint(uint64(r.ProductID), 10),
					r.ProductName,
					strconv.Itoa(r.Quantity),
					r.UnitPrice.StringFixed(2),
					r.Total.StringFixed(2),
					r.CashbackTotal.StringFixed(2),
					r.Status,
					r.CashbackStatus,
				})
			}
			written += len(batch)
			if len(batch) < exportBatch {
				break
			}
			lastID = batch[len(batch)-1].ID
		}
		w.Flush()
		logrus.WithFields(logrus.Fields{"club": club.Slug, "rows": written}).Info("Purchases exported")
	}
}

// SyncOrdersHandler reconciles the club's exchange orders with the chain on demand
func SyncOrdersHandler(syncer *reconcile.Syncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, club := caller(c)
		if syncer == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Blockchain RPC is not configured"})
			return
		}
		res, err := syncer.SyncTenant(c.Request.Context(), middleware.TenantDB(c))
		if err != nil {
			logrus.WithFields(logrus.Fields{"club": club.Slug, "error": err.Error()}).Error("Order sync failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Order sync failed", "result": res})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": res})
	}
}
