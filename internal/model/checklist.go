package model

import "time"

// ChecklistItem 入会清单条目，按 SortOrder 升序展示
type ChecklistItem struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Label     string    `json:"label" gorm:"type:varchar(255);not null"`
	SortOrder int       `json:"sort_order" gorm:"not null;default:0;index:idx_checklist_active_sort,priority:2"`
	Active    bool      `json:"-" gorm:"not null;default:true;index:idx_checklist_active_sort,priority:1"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (ChecklistItem) TableName() string { return "checklist_items" }

func (c ChecklistItem) ItemID() string { return c.ID }
