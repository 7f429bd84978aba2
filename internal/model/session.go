package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AcademicSession is one allocation cycle. At most one session is active at
// a time; activating a session deactivates all others in the same transaction.
type AcademicSession struct {
	ID                   string    `gorm:"primaryKey;size:36"`
	Name                 string    `gorm:"uniqueIndex;size:64;not null"`
	StartDate            time.Time `gorm:"not null"`
	EndDate              time.Time `gorm:"not null"`
	ApplicationStartDate time.Time `gorm:"not null"`
	ApplicationEndDate   time.Time `gorm:"not null"`
	IsActive             bool      `gorm:"not null;default:false;index"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (s *AcademicSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ApplicationWindowOpen reports whether applications are accepted at t.
func (s *AcademicSession) ApplicationWindowOpen(t time.Time) bool {
	return !t.Before(s.ApplicationStartDate) && !t.After(s.ApplicationEndDate)
}
