package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Hostel is a gendered building. CurrentOccupancy is a denormalized counter
// that must equal the number of live allocations across the hostel's rooms;
// every write path that touches allocations maintains it.
type Hostel struct {
	ID               string `gorm:"primaryKey;size:36"`
	Name             string `gorm:"uniqueIndex;size:128;not null"`
	Gender           Gender `gorm:"size:8;not null;index"`
	TotalCapacity    int    `gorm:"not null;default:0"`
	CurrentOccupancy int    `gorm:"not null;default:0"`
	Description      string `gorm:"size:512"`
	IsActive         bool   `gorm:"not null;default:true"`
	DeletedAt        gorm.DeletedAt
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Associations
	Rooms []Room `gorm:"foreignKey:HostelID"`
}

func (h *Hostel) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
