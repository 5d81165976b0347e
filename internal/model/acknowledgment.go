package model

import "time"

// Acknowledgment is the sparse per-(user, item) overlay row. A missing row
// means not acknowledged; AcknowledgedAt is set iff Acknowledged is true.
type Acknowledgment struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID         string     `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:ux_ack_user_kind_item,priority:1"`
	Kind           string     `json:"kind" gorm:"type:varchar(32);not null;uniqueIndex:ux_ack_user_kind_item,priority:2;index:idx_ack_kind_item,priority:1"`
	ItemID         string     `json:"item_id" gorm:"type:varchar(36);not null;uniqueIndex:ux_ack_user_kind_item,priority:3;index:idx_ack_kind_item,priority:2"`
	Acknowledged   bool       `json:"acknowledged" gorm:"not null;default:false"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Acknowledgment) TableName() string { return "acknowledgments" }

// Consistent reports whether the flag/timestamp pairing holds.
func (a Acknowledgment) Consistent() bool {
	return a.Acknowledged == (a.AcknowledgedAt != nil)
}

// Item is implemented by every catalog model the overlay can attach to.
type Item interface {
	Message | ChecklistItem
	ItemID() string
}

// AllModels lists the tables managed by AutoMigrate.
func AllModels() []any {
	return []any{&User{}, &Message{}, &ChecklistItem{}, &Acknowledgment{}}
}
