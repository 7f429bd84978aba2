package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/model"
)

type subscribeRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Endpoint  string `json:"endpoint" binding:"required,url"`
	Keys      struct {
		P256DH string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

// Subscribe handles POST /api/push/subscribe. Re-subscribing the same
// endpoint updates the stored keys.
func Subscribe(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sub := model.PushSubscription{
			Endpoint:  req.Endpoint,
			StudentID: req.StudentID,
			P256DH:    req.Keys.P256DH,
			Auth:      req.Keys.Auth,
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"student_id", "p256dh", "auth"}),
		}).Create(&sub).Error; err != nil {
			abortWithError(c, apperr.DB("failed to save subscription", err))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"status": "subscribed"})
	}
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
}

// Unsubscribe handles POST /api/push/unsubscribe.
func Unsubscribe(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req unsubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := db.Delete(&model.PushSubscription{}, "endpoint = ?", req.Endpoint).Error; err != nil {
			abortWithError(c, apperr.DB("failed to delete subscription", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "unsubscribed"})
	}
}

// VAPIDPublicKey handles GET /api/push/vapid-public-key. Browsers need the
// key to create a subscription.
func (h *Handler) VAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push notifications not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
