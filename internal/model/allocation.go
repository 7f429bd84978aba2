package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Allocation is a successful match of a student to a bed space. At most one
// allocation with a live status (active/checked_in) may exist per
// (student, session).
type Allocation struct {
	ID             string  `gorm:"primaryKey;size:36"`
	StudentID      string  `gorm:"size:36;not null;index:idx_alloc_student_session"`
	ApplicationID  *string `gorm:"size:36"`
	HostelID       string  `gorm:"size:36;not null;index"`
	RoomID         string  `gorm:"size:36;not null;index"`
	SessionID      string  `gorm:"size:36;not null;index:idx_alloc_student_session;index"`
	BedSpaceNumber int     `gorm:"not null"`
	AllocationDate time.Time
	AllocationType AllocationType   `gorm:"size:16;not null"`
	AllocatedBy    *string          `gorm:"size:36"`
	Reason         string           `gorm:"size:256"`
	Status         AllocationStatus `gorm:"size:16;not null;default:active;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Associations
	Student Student `gorm:"foreignKey:StudentID"`
	Hostel  Hostel  `gorm:"foreignKey:HostelID"`
	Room    Room    `gorm:"foreignKey:RoomID"`
}

func (a *Allocation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AllocationDate.IsZero() {
		a.AllocationDate = time.Now().UTC()
	}
	return nil
}

// IsLive reports whether the allocation currently holds a bed.
func (a *Allocation) IsLive() bool {
	return a.Status == AllocStatusActive || a.Status == AllocStatusCheckedIn
}
