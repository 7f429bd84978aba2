package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/model"
)

type sessionRequest struct {
	Name                 string    `json:"name" binding:"required"`
	StartDate            time.Time `json:"start_date" binding:"required"`
	EndDate              time.Time `json:"end_date" binding:"required"`
	ApplicationStartDate time.Time `json:"application_start_date" binding:"required"`
	ApplicationEndDate   time.Time `json:"application_end_date" binding:"required"`
	IsActive             bool      `json:"is_active"`
}

// CreateSession handles POST /api/admin/sessions. Activating the new session
// deactivates every other one.
func (h *Handler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := model.AcademicSession{
		Name:                 req.Name,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		ApplicationStartDate: req.ApplicationStartDate,
		ApplicationEndDate:   req.ApplicationEndDate,
		IsActive:             req.IsActive,
	}
	if err := h.store.SaveSession(c.Request.Context(), &session); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// UpdateSession handles PUT /api/admin/sessions/:session_id.
func (h *Handler) UpdateSession(c *gin.Context) {
	session, err := h.store.SessionByID(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session.Name = req.Name
	session.StartDate = req.StartDate
	session.EndDate = req.EndDate
	session.ApplicationStartDate = req.ApplicationStartDate
	session.ApplicationEndDate = req.ApplicationEndDate
	session.IsActive = req.IsActive
	if err := h.store.SaveSession(c.Request.Context(), session); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// ListSessions handles GET /api/admin/sessions.
func ListSessions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sessions []model.AcademicSession
		if err := db.Order("created_at DESC").Find(&sessions).Error; err != nil {
			abortWithError(c, apperr.DB("failed to fetch sessions", err))
			return
		}
		c.JSON(http.StatusOK, sessions)
	}
}
