package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/model"
)

// DashboardStats handles GET /api/admin/stats and aggregates the numbers
// the admin dashboard shows. Responses are memoized by the cache middleware.
func (h *Handler) DashboardStats(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := h.store.ActiveSession(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	db := h.store.DB().WithContext(ctx)

	var totalApplications, verifiedApplications, allocated int64
	if err := db.Model(&model.HostelApplication{}).
		Where("session_id = ?", session.ID).
		Count(&totalApplications).Error; err != nil {
		abortWithError(c, apperr.DB("failed to count applications", err))
		return
	}
	if err := db.Model(&model.HostelApplication{}).
		Where("session_id = ? AND payment_verified = ?", session.ID, true).
		Count(&verifiedApplications).Error; err != nil {
		abortWithError(c, apperr.DB("failed to count verified applications", err))
		return
	}
	if err := db.Model(&model.Allocation{}).
		Where("session_id = ? AND status IN ?", session.ID, model.LiveAllocationStatuses).
		Count(&allocated).Error; err != nil {
		abortWithError(c, apperr.DB("failed to count allocations", err))
		return
	}

	type hostelRow struct {
		ID               string       `json:"id"`
		Name             string       `json:"name"`
		Gender           model.Gender `json:"gender"`
		TotalCapacity    int          `json:"total_capacity"`
		CurrentOccupancy int          `json:"current_occupancy"`
	}
	var hostels []hostelRow
	if err := db.Model(&model.Hostel{}).
		Select("id, name, gender, total_capacity, current_occupancy").
		Where("is_active = ?", true).
		Order("name ASC").
		Scan(&hostels).Error; err != nil {
		abortWithError(c, apperr.DB("failed to fetch hostel stats", err))
		return
	}

	var totalCapacity, totalOccupancy int
	for _, hr := range hostels {
		totalCapacity += hr.TotalCapacity
		totalOccupancy += hr.CurrentOccupancy
	}

	c.JSON(http.StatusOK, gin.H{
		"session":               session,
		"total_applications":    totalApplications,
		"verified_applications": verifiedApplications,
		"allocated":             allocated,
		"total_capacity":        totalCapacity,
		"total_occupancy":       totalOccupancy,
		"free_spaces":           totalCapacity - totalOccupancy,
		"hostels":               hostels,
	})
}
