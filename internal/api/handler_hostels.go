package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/model"
)

type hostelRequest struct {
	Name        string       `json:"name" binding:"required"`
	Gender      model.Gender `json:"gender" binding:"required,oneof=male female"`
	Description string       `json:"description"`
	IsActive    *bool        `json:"is_active"`
}

type roomRequest struct {
	RoomNumber  string `json:"room_number" binding:"required"`
	FloorNumber int    `json:"floor_number"`
	Capacity    int    `json:"capacity" binding:"required,min=1"`
	RoomType    string `json:"room_type"`
	IsAvailable *bool  `json:"is_available"`
	Notes       string `json:"notes"`
}

// ListHostels handles GET /api/hostels. Room rows are preloaded so clients
// can show per-room availability without a second request.
func ListHostels(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var hostels []model.Hostel
		if err := db.Preload("Rooms", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("rooms.room_number ASC")
		}).Order("hostels.name ASC").Find(&hostels).Error; err != nil {
			abortWithError(c, apperr.DB("failed to fetch hostels", err))
			return
		}
		c.JSON(http.StatusOK, hostels)
	}
}

// GetHostel handles GET /api/hostels/:hostel_id.
func GetHostel(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var hostel model.Hostel
		err := db.Preload("Rooms", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("rooms.room_number ASC")
		}).First(&hostel, "id = ?", c.Param("hostel_id")).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortWithError(c, apperr.NotFound(apperr.CodeHostelNotFound, "hostel not found"))
			return
		}
		if err != nil {
			abortWithError(c, apperr.DB("failed to fetch hostel", err))
			return
		}
		c.JSON(http.StatusOK, hostel)
	}
}

// CreateHostel handles POST /api/admin/hostels.
func CreateHostel(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req hostelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		hostel := model.Hostel{
			Name:        req.Name,
			Gender:      req.Gender,
			Description: req.Description,
			IsActive:    true,
		}
		if req.IsActive != nil {
			hostel.IsActive = *req.IsActive
		}
		if err := db.Create(&hostel).Error; err != nil {
			abortWithError(c, apperr.DB("failed to create hostel", err))
			return
		}
		c.JSON(http.StatusCreated, hostel)
	}
}

// UpdateHostel handles PUT /api/admin/hostels/:hostel_id. Gender is
// immutable once rooms are occupied, so it is not updatable here.
func UpdateHostel(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var hostel model.Hostel
		err := db.First(&hostel, "id = ?", c.Param("hostel_id")).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortWithError(c, apperr.NotFound(apperr.CodeHostelNotFound, "hostel not found"))
			return
		}
		if err != nil {
			abortWithError(c, apperr.DB("failed to fetch hostel", err))
			return
		}

		var req hostelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		hostel.Name = req.Name
		hostel.Description = req.Description
		if req.IsActive != nil {
			hostel.IsActive = *req.IsActive
		}
		if err := db.Save(&hostel).Error; err != nil {
			abortWithError(c, apperr.DB("failed to update hostel", err))
			return
		}
		c.JSON(http.StatusOK, hostel)
	}
}

// DeleteHostel handles DELETE /api/admin/hostels/:hostel_id. The delete is
// soft and refused while any live allocation references the hostel.
func DeleteHostel(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("hostel_id")
		var live int64
		if err := db.Model(&model.Allocation{}).
			Where("hostel_id = ? AND status IN ?", id, model.LiveAllocationStatuses).
			Count(&live).Error; err != nil {
			abortWithError(c, apperr.DB("failed to check allocations", err))
			return
		}
		if live > 0 {
			abortWithError(c, apperr.Conflict(apperr.CodeConflict, "hostel has live allocations"))
			return
		}
		res := db.Delete(&model.Hostel{}, "id = ?", id)
		if res.Error != nil {
			abortWithError(c, apperr.DB("failed to delete hostel", res.Error))
			return
		}
		if res.RowsAffected == 0 {
			abortWithError(c, apperr.NotFound(apperr.CodeHostelNotFound, "hostel not found"))
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// CreateRoom handles POST /api/admin/hostels/:hostel_id/rooms. The hostel's
// total capacity grows by the room's capacity.
func CreateRoom(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		hostelID := c.Param("hostel_id")
		var req roomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		room := model.Room{
			HostelID:    hostelID,
			RoomNumber:  req.RoomNumber,
			FloorNumber: req.FloorNumber,
			Capacity:    req.Capacity,
			RoomType:    "standard",
			IsAvailable: true,
			Notes:       req.Notes,
		}
		if req.RoomType != "" {
			room.RoomType = req.RoomType
		}
		if req.IsAvailable != nil {
			room.IsAvailable = *req.IsAvailable
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			var hostel model.Hostel
			if err := tx.First(&hostel, "id = ?", hostelID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound(apperr.CodeHostelNotFound, "hostel not found")
				}
				return apperr.DB("failed to fetch hostel", err)
			}
			if err := tx.Create(&room).Error; err != nil {
				return apperr.DB("failed to create room", err)
			}
			return tx.Model(&hostel).
				Update("total_capacity", gorm.Expr("total_capacity + ?", room.Capacity)).Error
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, room)
	}
}

// UpdateRoom handles PUT /api/admin/rooms/:room_id. Capacity may not shrink
// below the room's current occupancy.
func UpdateRoom(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var room model.Room
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&room, "id = ?", c.Param("room_id")).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound(apperr.CodeRoomNotFound, "room not found")
				}
				return apperr.DB("failed to fetch room", err)
			}
			if req.Capacity < room.CurrentOccupancy {
				return apperr.BadRequest(apperr.CodeValidation, "capacity below current occupancy")
			}
			delta := req.Capacity - room.Capacity

			room.RoomNumber = req.RoomNumber
			room.FloorNumber = req.FloorNumber
			room.Capacity = req.Capacity
			room.Notes = req.Notes
			if req.RoomType != "" {
				room.RoomType = req.RoomType
			}
			if req.IsAvailable != nil {
				room.IsAvailable = *req.IsAvailable
			}
			if err := tx.Save(&room).Error; err != nil {
				return apperr.DB("failed to update room", err)
			}
			if delta != 0 {
				return tx.Model(&model.Hostel{}).Where("id = ?", room.HostelID).
					Update("total_capacity", gorm.Expr("total_capacity + ?", delta)).Error
			}
			return nil
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, room)
	}
}

// DeleteRoom handles DELETE /api/admin/rooms/:room_id. Refused while the
// room has occupants; the hostel's total capacity shrinks accordingly.
func DeleteRoom(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := db.Transaction(func(tx *gorm.DB) error {
			var room model.Room
			if err := tx.First(&room, "id = ?", c.Param("room_id")).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound(apperr.CodeRoomNotFound, "room not found")
				}
				return apperr.DB("failed to fetch room", err)
			}
			if room.CurrentOccupancy > 0 {
				return apperr.Conflict(apperr.CodeConflict, "room has occupants")
			}
			if err := tx.Delete(&room).Error; err != nil {
				return apperr.DB("failed to delete room", err)
			}
			return tx.Model(&model.Hostel{}).Where("id = ?", room.HostelID).
				Update("total_capacity", gorm.Expr("total_capacity - ?", room.Capacity)).Error
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// RoomOccupants handles GET /api/admin/rooms/:room_id/occupants and lists
// the students currently holding a bed in the room.
func RoomOccupants(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var allocations []model.Allocation
		if err := db.Preload("Student").
			Where("room_id = ? AND status IN ?", c.Param("room_id"), model.LiveAllocationStatuses).
			Order("bed_space_number ASC").
			Find(&allocations).Error; err != nil {
			abortWithError(c, apperr.DB("failed to fetch occupants", err))
			return
		}
		c.JSON(http.StatusOK, allocations)
	}
}
