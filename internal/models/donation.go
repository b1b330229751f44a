package models

import "time"

// Donation is one support action recorded in the ledger. Records are immutable:
// PlatformFee + AuthorEarning always equals Amount.
type Donation struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Reference     string    `gorm:"uniqueIndex;size:64;not null" json:"support_id"`
	PostID        uint      `gorm:"not null;index" json:"post_id"`
	AuthorID      uint      `gorm:"not null;index" json:"author_id"`
	SupporterID   uint      `gorm:"not null;index" json:"supporter_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	PlatformFee   int64     `gorm:"not null" json:"platform_fee"`
	AuthorEarning int64     `gorm:"not null" json:"author_earning"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
}

// SupporterTotal caches the cumulative amount donated by one supporter.
type SupporterTotal struct {
	SupporterID   uint      `gorm:"primaryKey;autoIncrement:false" json:"supporter_id"`
	TotalAmount   int64     `gorm:"not null;default:0;index" json:"total_amount"`
	DonationCount int64     `gorm:"not null;default:0" json:"donation_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AuthorEarning caches the net earning credited to a post's author.
type AuthorEarning struct {
	PostID       uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	AuthorID     uint      `gorm:"not null;index" json:"author_id"`
	TotalEarning int64     `gorm:"not null;default:0" json:"total_earning"`
	UpdatedAt    time.Time `json:"updated_at"`
}
