package models

import (
	"time"

	"gorm.io/gorm"
)

// RankingDisplayMode controls who may see the supporter ranking on an author's posts.
type RankingDisplayMode string

const (
	RankingPublic  RankingDisplayMode = "public"
	RankingPrivate RankingDisplayMode = "private"
	RankingHidden  RankingDisplayMode = "hidden"
)

// Valid reports whether m is one of the known display modes.
func (m RankingDisplayMode) Valid() bool {
	switch m {
	case RankingPublic, RankingPrivate, RankingHidden:
		return true
	}
	return false
}

// User is both the authenticated identity and the supporter profile shown in rankings.
// Authors carry their ranking visibility settings here as well.
type User struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	Username           string             `gorm:"uniqueIndex;size:64;not null" json:"username"`
	DisplayName        string             `gorm:"size:50" json:"display_name"`
	Avatar             string             `json:"avatar,omitempty"`
	Bio                string             `gorm:"type:text" json:"bio,omitempty"`
	IsAnonymous        bool               `gorm:"not null;default:false" json:"is_anonymous"`
	IsAdmin            bool               `gorm:"not null;default:false" json:"is_admin"`
	RankingDisplayMode RankingDisplayMode `gorm:"size:16;not null;default:'public'" json:"ranking_display_mode"`
	ShowRankMode       bool               `gorm:"not null;default:false" json:"show_rank_mode"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	DeletedAt          gorm.DeletedAt     `gorm:"index" json:"-"`
	Posts              []Post             `gorm:"foreignKey:UserID" json:"posts,omitempty"`
}

// DisplayMode returns the configured ranking mode, treating unset as public.
func (u *User) DisplayMode() RankingDisplayMode {
	if u == nil || u.RankingDisplayMode == "" {
		return RankingPublic
	}
	return u.RankingDisplayMode
}
