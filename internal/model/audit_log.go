package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// AuditLog records one privileged action. The payload format is opaque to
// the rest of the system; downstream consumers parse it as JSON.
type AuditLog struct {
	ID         string  `gorm:"primaryKey;size:36"`
	ActorID    *string `gorm:"size:36;index"`
	Action     string  `gorm:"size:64;not null;index"`
	EntityType string  `gorm:"size:32"`
	EntityID   string  `gorm:"size:36"`
	Payload    string  `gorm:"type:text"`
	Reason     string  `gorm:"size:256"`
	CreatedAt  time.Time
}

func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

var _ schema.Tabler = (*AuditLog)(nil)

func (AuditLog) TableName() string { return "audit_logs" }
