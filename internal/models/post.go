// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is an artwork published by an author. TotalSupport and SupportCount are
// cached from the donation ledger and are only written by the ledger store.
type Post struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Title        string         `gorm:"size:300" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	ImageURL     string         `gorm:"not null" json:"image_url"`
	UserID       uint           `gorm:"not null;index" json:"user_id"`
	User         User           `gorm:"foreignKey:UserID" json:"user"`
	TotalSupport int64          `gorm:"not null;default:0;index" json:"total_support"`
	SupportCount int64          `gorm:"not null;default:0" json:"support_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
