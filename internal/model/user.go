package model

import "time"

// User mirrors the identity provider's user record; the overlay only references ID.
type User struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Name      string `gorm:"type:varchar(128)"`
	Email     string `gorm:"type:varchar(255);uniqueIndex"`
	Role      string `gorm:"type:varchar(16);not null;default:member"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }
