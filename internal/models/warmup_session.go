package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/inboxlab/warmstack/internal/enum"
	"github.com/inboxlab/warmstack/internal/utils"
)

// WarmupSession is the per-day unit of warm-up progress for one domain
// account. (domain_account_id, session_date) is unique; restarting "today"
// reuses the row.
type WarmupSession struct {
	ID              string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	DomainAccountID string             `gorm:"column:domain_account_id;type:varchar(50);not null;uniqueIndex:idx_session_day" json:"domainAccountId"`
	SessionDate     string             `gorm:"column:session_date;type:varchar(10);not null;uniqueIndex:idx_session_day" json:"sessionDate"`
	CurrentLead     int                `gorm:"column:current_lead_index;not null;default:0" json:"currentLeadIndex"`
	Status          enum.SessionStatus `gorm:"column:status;type:varchar(50);not null;default:'pending'" json:"status"`
	LastMessageID   string             `gorm:"column:last_message_id;type:varchar(512)" json:"lastMessageId"`
	StartedAt       *time.Time         `gorm:"column:started_at;type:timestamp" json:"startedAt"`
	CompletedAt     *time.Time         `gorm:"column:completed_at;type:timestamp" json:"completedAt"`
	ErrorMessage    string             `gorm:"column:error_message;type:text" json:"errorMessage"`
	CreatedAt       time.Time          `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (WarmupSession) TableName() string {
	return "warmup_sessions"
}

func (s *WarmupSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = utils.GenerateNanoIDWithPrefix("wses", 16)
	}
	return nil
}
