package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HostelApplication is one student's request for a bed in one session, with
// up to three ranked hostel choices. At most one application exists per
// (student, session). Status and score are mutated only by the allocation
// engine and admin actions; rows are never hard-deleted.
type HostelApplication struct {
	ID                   string `gorm:"primaryKey;size:36"`
	StudentID            string `gorm:"size:36;not null;uniqueIndex:idx_app_student_session"`
	SessionID            string `gorm:"size:36;not null;uniqueIndex:idx_app_student_session;index"`
	ApplicationDate      time.Time
	FirstChoiceHostelID  *string `gorm:"size:36"`
	SecondChoiceHostelID *string `gorm:"size:36"`
	ThirdChoiceHostelID  *string `gorm:"size:36"`
	ReceiptReference     string  `gorm:"size:256"`
	PaymentVerified      bool    `gorm:"not null;default:false;index"`
	PaymentVerifiedBy    *string `gorm:"size:36"`
	PaymentVerifiedAt    *time.Time
	PriorityScore        *float64
	BallotRunID          *string           `gorm:"size:36;index"`
	Status               ApplicationStatus `gorm:"size:24;not null;default:pending;index"`
	CreatedAt            time.Time
	UpdatedAt            time.Time

	// Associations
	Student Student         `gorm:"foreignKey:StudentID"`
	Session AcademicSession `gorm:"foreignKey:SessionID"`
}

func (a *HostelApplication) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.ApplicationDate.IsZero() {
		a.ApplicationDate = time.Now().UTC()
	}
	return nil
}

// ChoiceHostelIDs returns the ranked, non-empty hostel preferences.
func (a *HostelApplication) ChoiceHostelIDs() []string {
	var ids []string
	for _, id := range []*string{a.FirstChoiceHostelID, a.SecondChoiceHostelID, a.ThirdChoiceHostelID} {
		if id != nil && *id != "" {
			ids = append(ids, *id)
		}
	}
	return ids
}
