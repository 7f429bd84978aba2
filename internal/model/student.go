package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Student holds the identity and eligibility attributes the allocation
// engine reads. Identity fields are immutable; eligibility and active flags
// are mutated by administrators only.
type Student struct {
	ID           string `gorm:"primaryKey;size:36"`
	MatricNumber string `gorm:"uniqueIndex;size:32;not null"`
	FirstName    string `gorm:"size:64;not null"`
	LastName     string `gorm:"size:64;not null"`
	Gender       Gender `gorm:"size:8;not null;index"`
	Level        int    `gorm:"not null"` // 100/200/300/400
	Department   string `gorm:"size:128"`
	IsEligible   bool   `gorm:"not null;default:true"`
	IsActive     bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// FullName is used in batch result reporting.
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}
