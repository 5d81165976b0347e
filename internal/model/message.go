package model

import "time"

// Message 收件箱消息（共享内容，所有成员可见）
type Message struct {
	ID       string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title    string `json:"title" gorm:"type:varchar(255);not null"`
	Body     string `json:"body" gorm:"type:text"`
	SenderID string `json:"sender_id,omitempty" gorm:"type:varchar(36);index"`
	// SenderName is filled by the inbox list join and never migrated.
	SenderName string    `json:"sender_name" gorm:"->;-:migration"`
	Active     bool      `json:"-" gorm:"not null;default:true;index:idx_message_active_created,priority:1"`
	CreatedAt  time.Time `json:"created_at" gorm:"index:idx_message_active_created,priority:2"`
	UpdatedAt  time.Time `json:"-"`
}

func (Message) TableName() string { return "messages" }

func (m Message) ItemID() string { return m.ID }
