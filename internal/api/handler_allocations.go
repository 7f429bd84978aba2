package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/ballot"
	"hostel-allocation-backend/internal/model"
)

// ManualAllocate handles POST /api/admin/allocations.
func (h *Handler) ManualAllocate(c *gin.Context) {
	var params ballot.ManualParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alloc, err := h.ballot.ManualAllocate(c.Request.Context(), actorID(c), params)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alloc)
}

// ListAllocations handles GET /api/admin/allocations with optional
// session_id, hostel_id and status filters.
func (h *Handler) ListAllocations(c *gin.Context) {
	q := h.store.DB().WithContext(c.Request.Context()).
		Preload("Student").Preload("Hostel").Preload("Room").
		Order("allocation_date DESC")
	if sessionID := c.Query("session_id"); sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if hostelID := c.Query("hostel_id"); hostelID != "" {
		q = q.Where("hostel_id = ?", hostelID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var allocations []model.Allocation
	if err := q.Find(&allocations).Error; err != nil {
		abortWithError(c, apperr.DB("failed to fetch allocations", err))
		return
	}
	c.JSON(http.StatusOK, allocations)
}

// MyAllocation handles GET /api/students/:student_id/allocation. The
// response includes the student's current roommates.
func (h *Handler) MyAllocation(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := h.store.ActiveSession(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	db := h.store.DB().WithContext(ctx)
	var alloc model.Allocation
	err = db.Preload("Hostel").Preload("Room").
		Where("student_id = ? AND session_id = ? AND status IN ?",
			c.Param("student_id"), session.ID, model.LiveAllocationStatuses).
		First(&alloc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		abortWithError(c, apperr.NotFound(apperr.CodeAllocationNotFound, "no allocation for the current session"))
		return
	}
	if err != nil {
		abortWithError(c, apperr.DB("failed to fetch allocation", err))
		return
	}

	var roommates []model.Allocation
	if err := db.Preload("Student").
		Where("room_id = ? AND session_id = ? AND status IN ? AND student_id <> ?",
			alloc.RoomID, session.ID, model.LiveAllocationStatuses, alloc.StudentID).
		Order("bed_space_number ASC").
		Find(&roommates).Error; err != nil {
		abortWithError(c, apperr.DB("failed to fetch roommates", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"allocation": alloc, "roommates": roommates})
}

// CheckIn handles POST /api/warden/allocations/:allocation_id/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	h.transition(c, model.AllocStatusActive, model.AllocStatusCheckedIn, "check_in", false)
}

// CheckOut handles POST /api/warden/allocations/:allocation_id/check-out.
// Checking out frees the bed, so the room and hostel occupancy counters are
// decremented in the same transaction.
func (h *Handler) CheckOut(c *gin.Context) {
	h.transition(c, model.AllocStatusCheckedIn, model.AllocStatusCheckedOut, "check_out", true)
}

func (h *Handler) transition(c *gin.Context, from, to model.AllocationStatus, action string, freesBed bool) {
	ctx := c.Request.Context()
	var alloc model.Allocation
	err := h.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&alloc, "id = ?", c.Param("allocation_id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(apperr.CodeAllocationNotFound, "allocation not found")
			}
			return apperr.DB("failed to fetch allocation", err)
		}
		if alloc.Status != from {
			return apperr.Conflict(apperr.CodeConflict, "allocation is not in status "+string(from))
		}
		if err := tx.Model(&alloc).Update("status", to).Error; err != nil {
			return apperr.DB("failed to update allocation", err)
		}
		if !freesBed {
			return nil
		}
		if err := tx.Model(&model.Room{}).
			Where("id = ? AND current_occupancy > 0", alloc.RoomID).
			Update("current_occupancy", gorm.Expr("current_occupancy - 1")).Error; err != nil {
			return apperr.DB("failed to update room occupancy", err)
		}
		return tx.Model(&model.Hostel{}).
			Where("id = ? AND current_occupancy > 0", alloc.HostelID).
			Update("current_occupancy", gorm.Expr("current_occupancy - 1")).Error
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	actor := actorID(c)
	h.store.Audit(ctx, &actor, action, "allocation", alloc.ID, nil, "")
	alloc.Status = to
	c.JSON(http.StatusOK, alloc)
}
