package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/ballot"
	"hostel-allocation-backend/internal/model"
)

// GetBallotConfig handles GET /api/admin/sessions/:session_id/ballot-config.
func (h *Handler) GetBallotConfig(c *gin.Context) {
	cfg, err := h.store.BallotConfigFor(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if cfg == nil {
		abortWithError(c, apperr.NotFound(apperr.CodeBallotNoConfig, "no ballot config for this session"))
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// PutBallotConfig handles PUT /api/admin/sessions/:session_id/ballot-config.
func (h *Handler) PutBallotConfig(c *gin.Context) {
	var params ballot.ConfigParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := h.ballot.Configure(c.Request.Context(), c.Param("session_id"), actorID(c), params)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// RunBallot handles POST /api/admin/sessions/:session_id/ballot/run.
func (h *Handler) RunBallot(c *gin.Context) {
	result, err := h.ballot.Run(c.Request.Context(), c.Param("session_id"), actorID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run":         result.Run,
		"assignments": result.Assignments,
		"failures":    result.Failures,
	})
}

type approveRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// ApproveBallot handles POST /api/admin/ballot-runs/:run_id/approve.
// approved=false reverses the run and frees every bed it assigned.
func (h *Handler) ApproveBallot(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	run, err := h.ballot.Approve(c.Request.Context(), c.Param("run_id"), actorID(c), *req.Approved)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// BallotHistory handles GET /api/admin/sessions/:session_id/ballot-runs.
func (h *Handler) BallotHistory(c *gin.Context) {
	var runs []model.BallotRun
	if err := h.store.DB().WithContext(c.Request.Context()).
		Where("session_id = ?", c.Param("session_id")).
		Order("run_at DESC").
		Find(&runs).Error; err != nil {
		abortWithError(c, apperr.DB("failed to fetch ballot runs", err))
		return
	}
	c.JSON(http.StatusOK, runs)
}

type bulkAssignRequest struct {
	StudentIDs []string    `json:"student_ids" binding:"required,min=1"`
	SessionID  string      `json:"session_id"`
	Mode       ballot.Mode `json:"mode" binding:"omitempty,oneof=priority_based random"`
}

// BulkAssign handles POST /api/admin/allocations/bulk-assign.
func (h *Handler) BulkAssign(c *gin.Context) {
	var req bulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Mode == "" {
		req.Mode = ballot.ModePriorityBased
	}
	result, err := h.ballot.BulkAssign(c.Request.Context(), actorID(c), req.StudentIDs, req.SessionID, req.Mode)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
