package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room belongs to exactly one hostel. Invariant:
// 0 <= CurrentOccupancy <= Capacity, with CurrentOccupancy matching the
// count of live allocations referencing the room.
type Room struct {
	ID               string `gorm:"primaryKey;size:36"`
	HostelID         string `gorm:"size:36;not null;index"`
	RoomNumber       string `gorm:"size:32;not null;index"`
	FloorNumber      int    `gorm:"not null;default:0"`
	Capacity         int    `gorm:"not null"`
	CurrentOccupancy int    `gorm:"not null;default:0"`
	RoomType         string `gorm:"size:32;not null;default:standard"`
	IsAvailable      bool   `gorm:"not null;default:true"`
	Notes            string `gorm:"size:512"`
	DeletedAt        gorm.DeletedAt
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Associations
	Hostel Hostel `gorm:"constraint:OnDelete:CASCADE"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// HasFreeBed reports whether at least one bed space is unassigned.
func (r *Room) HasFreeBed() bool {
	return r.CurrentOccupancy < r.Capacity
}
