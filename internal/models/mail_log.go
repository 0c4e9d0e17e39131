package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/inboxlab/warmstack/internal/enum"
	"github.com/inboxlab/warmstack/internal/utils"
)

// MailLog is an append-only audit record of every sent/received/replied
// message observed during warm-up. Entries are never modified.
type MailLog struct {
	ID          string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	SessionID   *string            `gorm:"column:session_id;type:varchar(50);index" json:"sessionId"`
	FromAddress string             `gorm:"column:from_address;type:varchar(255);not null" json:"fromAddress"`
	ToAddress   string             `gorm:"column:to_address;type:varchar(255);not null" json:"toAddress"`
	Subject     string             `gorm:"column:subject;type:text" json:"subject"`
	Body        string             `gorm:"column:body;type:text" json:"body"`
	MessageID   string             `gorm:"column:message_id;type:varchar(512);index" json:"messageId"`
	InReplyTo   string             `gorm:"column:in_reply_to;type:varchar(512)" json:"inReplyTo"`
	Direction   enum.MailDirection `gorm:"column:direction;type:varchar(50);not null" json:"direction"`
	LeadIndex   int                `gorm:"column:lead_index;not null;default:0" json:"leadIndex"`
	CreatedAt   time.Time          `gorm:"column:created_at;type:timestamp;default:current_timestamp;index" json:"createdAt"`
}

func (MailLog) TableName() string {
	return "mail_logs"
}

func (m *MailLog) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("mlog", 16)
	}
	return nil
}
