package api

import (
	"context"  // Background email job
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"clube_beneficios/internal/domain"     // Importing domain models
	"clube_beneficios/internal/mail"       // Email delivery
	"clube_beneficios/internal/middleware" // Tenant context helpers
	"clube_beneficios/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm"               // GORM ORM library
)

const (
	MailConcurrency = 4   // Parallel sends per batch
	mailBatchSize   = 200 // Recipients loaded per query
)

// NotificationRequest creates a notification for one user or the whole club
type NotificationRequest struct {
	Title     string `json:"title" binding:"required"` // Headline
	Body      string `json:"body"`                     // Message text
	UserID    *uint  `json:"user_id"`                  // Nil broadcasts to every user
	SendEmail bool   `json:"send_email"`               // Also deliver by email
}

// CreateNotificationHandler stores a notification and, when asked, queues the emails.
// Recipients are read in batches by a background job so a large club never holds the request.
func CreateNotificationHandler(mailer *mail.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, club := caller(c)
		tdb := middleware.TenantDB(c)
		var req NotificationRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		recipients := tdb.Model(&domain.User{}) // Whole club unless addressed
		if req.UserID != nil {
			recipients = recipients.Where("id = ?", *req.UserID)
		}
		var count int64
		if err := recipients.Session(&gorm.Session{}).Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load recipients"})
			return
		}
		if req.UserID != nil && count == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		n := domain.Notification{Title: strings.TrimSpace(req.Title), Body: req.Body, UserID: req.UserID}
		if err := tdb.Create(&n).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create notification"})
			return
		}

		var queued int64
		if req.SendEmail && mailer != nil {
			queued = count
			mailer.Go(c.Request.Context(), func(ctx context.Context) {
				emailNotification(ctx, mailer, tdb, club.Slug, n, req.UserID)
			})
		}
		logrus.WithFields(logrus.Fields{
			"club":            club.Slug,
			"notification_id": n.ID,
			"recipients":      count,
			"emails_queued":   queued,
		}).Info("Notification created")
		c.JSON(http.StatusCreated, gin.H{"notification": n, "emails_queued": queued})
	}
}

// emailNotification sends one message per recipient, batch by batch, and flags the
// notification once every address was accepted
func emailNotification(ctx context.Context, mailer *mail.Dispatcher, tdb *gorm.DB, slug string, n domain.Notification, userID *uint) {
	q := tdb.WithContext(ctx).Model(&domain.User{}).Select("id", "email")
	if userID != nil {
		q = q.Where("id = ?", *userID)
	}
	var sent, failed int
	var batch []domain.User
	err := q.FindInBatches(&batch, mailBatchSize, func(_ *gorm.DB, _ int) error {
		msgs := make([]mail.Message, 0, len(batch))
		for _, u := range batch {
			// One message per recipient so addresses are never shared
			msgs = append(msgs, mail.Message{To: []string{u.Email}, Subject: n.Title, Text: n.Body})
		}
		ok, bad := mailer.SendEach(ctx, msgs)
		sent += ok
		failed += bad
		return nil
	}).Error
	log := logrus.WithFields(logrus.Fields{"club": slug, "notification_id": n.ID, "emails_sent": sent, "emails_failed": failed})
	if err != nil {
		log.WithField("error", err.Error()).Error("Failed to load notification recipients")
		return
	}
	if failed == 0 && sent > 0 {
		if err := tdb.WithContext(ctx).Model(&domain.Notification{}).Where("id = ?", n.ID).Update("email_sent", true).Error; err != nil {
			log.WithField("error", err.Error()).Warn("Failed to flag notification as emailed")
			return
		}
	}
	log.Info("Notification emails delivered")
}

// ListNotificationsHandler lists every notification of the club for its admins
func ListNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		listNotifications(c, middleware.TenantDB(c).Model(&domain.Notification{}))
	}
}

// UserNotificationsHandler lists broadcasts plus the notifications addressed to the user
func UserNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := caller(c)
		q := middleware.TenantDB(c).Model(&domain.Notification{}).Where("user_id = ? OR user_id IS NULL", id.SubjectID)
		listNotifications(c, q)
	}
}

func listNotifications(c *gin.Context, q *gorm.DB) {
	q = q.Session(&gorm.Session{})
	page, pageSize := utils.Page(c)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count notifications"})
		return
	}
	var items []domain.Notification
	if err := q.Order("created_at desc").Order("id desc").Offset(utils.Offset(page, pageSize)).Limit(pageSize).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, newPaged(items, page, pageSize, total))
}

// FAQRequest creates or updates a FAQ entry; omitted fields keep their value on update
type FAQRequest struct {
	Question  *string `json:"question"`
	Answer    *string `json:"answer"`
	Category  *string `json:"category"`
	Position  *int    `json:"position"`
	Published *bool   `json:"published"`
}

func (r FAQRequest) apply(f *domain.FAQ) error {
	if r.Question != nil {
		f.Question = strings.TrimSpace(*r.Question)
	}
	if r.Answer != nil {
		f.Answer = strings.TrimSpace(*r.Answer)
	}
	if r.Category != nil {
		f.Category = strings.ToLower(strings.TrimSpace(*r.Category))
	}
	if r.Position != nil {
		f.Position = *r.Position
	}
	if r.Published != nil {
		f.Published = *r.Published
	}
	if f.Question == "" || f.Answer == "" {
		return errors.New("question and answer are required")
	}
	return nil
}

// CreateFAQHandler adds a FAQ entry, published unless told otherwise
func CreateFAQHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tdb := middleware.TenantDB(c)
		var req FAQRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		faq := domain.FAQ{Published: true}
		if err := req.apply(&faq); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tdb.Create(&faq).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create FAQ"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"faq": faq})
	}
}

func loadFAQ(c *gin.Context, tdb *gorm.DB) (*domain.FAQ, bool) {
	faqID, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var faq domain.FAQ
	if err := tdb.First(&faq, faqID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "FAQ not found"})
		return nil, false
	}
	return &faq, true
}

// UpdateFAQHandler edits a FAQ entry
func UpdateFAQHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tdb := middleware.TenantDB(c)
		faq, ok := loadFAQ(c, tdb)
		if !ok {
			return
		}
		var req FAQRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := req.apply(faq); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tdb.Save(faq).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update FAQ"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"faq": faq})
	}
}

// DeleteFAQHandler removes a FAQ entry
func DeleteFAQHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tdb := middleware.TenantDB(c)
		faq, ok := loadFAQ(c, tdb)
		if !ok {
			return
		}
		if err := tdb.Delete(faq).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete FAQ"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "FAQ deleted"})
	}
}

// ListFAQsHandler lists FAQ entries ordered for display; unpublished ones only when includeDrafts
func ListFAQsHandler(includeDrafts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := middleware.TenantDB(c).Model(&domain.FAQ{})
		if !includeDrafts {
			q = q.Where("published = ?", true)
		}
		if cat := c.Query("category"); cat != "" {
			q = q.Where("category = ?", strings.ToLower(cat))
		}
		var faqs []domain.FAQ
		if err := q.Order("category").Order("position").Order("id").Find(&faqs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch FAQs"})
			return
		}
		if faqs == nil {
			faqs = []domain.FAQ{}
		}
		c.JSON(http.StatusOK, gin.H{"faqs": faqs})
	}
}
