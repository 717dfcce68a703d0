package api

import (
	"errors"   // Error matching
	"io"       // Body reading
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"clube_beneficios/internal/domain"     // Importing domain models
	"clube_beneficios/internal/middleware" // Tenant context helpers
	"clube_beneficios/internal/utils"      // Utility functions
	"clube_beneficios/internal/whatsapp"   // Cloud API client

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm"               // GORM ORM library
)

const maxWebhookBody = 1 << 20 // Cloud API payloads are small

// SendWhatsAppRequest sends a text message to a phone number
type SendWhatsAppRequest struct {
	Phone string `json:"phone" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

// SendWhatsAppHandler sends a message through the Cloud API and records it in history
func SendWhatsAppHandler(client *whatsapp.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, club := caller(c)
		tdb := middleware.TenantDB(c)
		var req SendWhatsAppRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		phone, err := whatsapp.NormalizePhone(req.Phone)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid phone number"})
			return
		}
		if strings.TrimSpace(req.Body) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message body is empty"})
			return
		}
		msg := domain.WhatsAppMessage{Phone: phone, Direction: domain.DirectionOutbound, Body: req.Body}
		providerID, sendErr := client.SendText(c.Request.Context(), phone, req.Body)
		if sendErr != nil {
			msg.Status = "failed"
		} else {
			msg.Status = "sent"
			msg.ProviderMessageID = providerID
		}
		// Failed attempts are kept so the history shows them
		if err := tdb.Create(&msg).Error; err != nil {
			logrus.WithFields(logrus.Fields{"club": club.Slug, "error": err.Error()}).Error("Failed to record WhatsApp message")
		}
		if sendErr != nil {
			logrus.WithFields(logrus.Fields{"club": club.Slug, "phone": phone, "error": sendErr.Error()}).Error("WhatsApp send failed")
			if errors.Is(sendErr, whatsapp.ErrNotConfigured) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WhatsApp is not configured"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "WhatsApp provider rejected the message"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": msg})
	}
}

// WhatsAppHistoryHandler lists messages, newest first, optionally for one phone
func WhatsAppHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		q := middleware.TenantDB(c).Model(&domain.WhatsAppMessage{})
		if p := c.Query("phone"); p != "" {
			phone, err := whatsapp.NormalizePhone(p)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid phone number"})
				return
			}
			q = q.Where("phone = ?", phone)
		}
		q = q.Session(&gorm.Session{})
		page, pageSize := utils.Page(c)
		var total int64
		if err := q.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count messages"})
			return
		}
		var msgs []domain.WhatsAppMessage
		if err := q.Order("created_at desc").Order("id desc").Offset(utils.Offset(page, pageSize)).Limit(pageSize).Find(&msgs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
			return
		}
		c.JSON(http.StatusOK, newPaged(msgs, page, pageSize, total))
	}
}

// WhatsAppVerifyHandler answers the Cloud API subscription challenge
func WhatsAppVerifyHandler(verifyToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		challenge, err := whatsapp.VerifyChallenge(c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"), verifyToken)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Verification failed"})
			return
		}
		c.String(http.StatusOK, challenge)
	}
}

// WhatsAppWebhookHandler stores inbound messages and applies delivery status updates
func WhatsAppWebhookHandler(appSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, club := caller(c)
		tdb := middleware.TenantDB(c)
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid body"})
			return
		}
		if err := whatsapp.VerifySignature(appSecret, c.GetHeader(whatsapp.SignatureHeader), body); err != nil {
			logrus.WithFields(logrus.Fields{"club": club.Slug, "error": err.Error()}).Warn("Rejected unsigned WhatsApp webhook")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
			return
		}
		inbound, statuses, err := whatsapp.ParseWebhook(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
			return
		}
		stored := 0
		for _, m := range inbound {
			// Deliveries are retried by the provider; the message id keeps them unique
			var dup int64
			if err := tdb.Model(&domain.WhatsAppMessage{}).Where("provider_message_id = ?", m.ID).Count(&dup).Error; err == nil && dup > 0 {
				continue
			}
			row := domain.WhatsAppMessage{
				Phone:             m.From,
				Direction:         domain.DirectionInbound,
				Body:              m.Body,
				ProviderMessageID: m.ID,
				Status:            "received",
				CreatedAt:         m.ReceivedAt,
			}
			if err := tdb.Create(&row).Error; err != nil {
				logrus.WithFields(logrus.Fields{"club": club.Slug, "error": err.Error()}).Error("Failed to store inbound WhatsApp message")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store message"}) // Provider retries
				return
			}
			stored++
		}
		for _, s := range statuses {
			if err := tdb.Model(&domain.WhatsAppMessage{}).
				Where("provider_message_id = ? AND direction = ?", s.ID, domain.DirectionOutbound).
				Update("status", s.Status).Error; err != nil {
				logrus.WithFields(logrus.Fields{"club": club.Slug, "error": err.Error()}).Warn("Failed to apply WhatsApp status")
			}
		}
		logrus.WithFields(logrus.Fields{"club": club.Slug, "stored": stored, "statuses": len(statuses)}).Debug("WhatsApp webhook processed")
		c.JSON(http.StatusOK, gin.H{"received": stored})
	}
}
