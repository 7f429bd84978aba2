package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BallotConfig holds the per-session scoring weights. The three weights must
// sum to 1.0 (validated at the API boundary, tolerance 0.001). One config
// exists per session (upsert semantics).
type BallotConfig struct {
	ID                string  `gorm:"primaryKey;size:36"`
	SessionID         string  `gorm:"size:36;not null;uniqueIndex"`
	PaymentWeight     float64 `gorm:"not null"`
	CategoryWeight    float64 `gorm:"not null"`
	LevelWeight       float64 `gorm:"not null"`
	FreshStudentScore float64 `gorm:"not null"`
	FinalYearScore    float64 `gorm:"not null"`
	Level300Score     float64 `gorm:"not null"`
	Level200Score     float64 `gorm:"not null"`
	CreatedBy         string  `gorm:"size:36"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (c *BallotConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// BallotRun is an immutable record of one ballot execution. The config
// columns are a frozen snapshot taken at run time, so later config edits do
// not retroactively alter history.
type BallotRun struct {
	ID        string `gorm:"primaryKey;size:36"`
	SessionID string `gorm:"size:36;not null;index"`
	ConfigID  string `gorm:"size:36;not null"`

	// Config snapshot, frozen at run time.
	SnapshotPaymentWeight     float64 `gorm:"not null"`
	SnapshotCategoryWeight    float64 `gorm:"not null"`
	SnapshotLevelWeight       float64 `gorm:"not null"`
	SnapshotFreshStudentScore float64 `gorm:"not null"`
	SnapshotFinalYearScore    float64 `gorm:"not null"`
	SnapshotLevel300Score     float64 `gorm:"not null"`
	SnapshotLevel200Score     float64 `gorm:"not null"`

	TotalApplicants  int             `gorm:"not null;default:0"`
	TotalVerified    int             `gorm:"not null;default:0"`
	TotalSpaces      int             `gorm:"not null;default:0"`
	TotalAllocated   int             `gorm:"not null;default:0"`
	TotalUnallocated int             `gorm:"not null;default:0"`
	Status           BallotRunStatus `gorm:"size:16;not null;default:running;index"`
	RunAt            time.Time       `gorm:"not null"`
	RunBy            string          `gorm:"size:36;not null"`
	ApprovedAt       *time.Time
	ApprovedBy       *string `gorm:"size:36"`
	CreatedAt        time.Time
}

func (r *BallotRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.RunAt.IsZero() {
		r.RunAt = time.Now().UTC()
	}
	return nil
}
