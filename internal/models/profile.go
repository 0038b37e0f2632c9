package models

import (
	"database/sql"
	"time"
)

// Profile represents a tracked Instagram account
type Profile struct {
	ID          int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	WorkspaceID int64  `gorm:"not null;index;column:workspace_id" json:"workspace_id"`
	InstagramID string `gorm:"type:varchar(64);not null;uniqueIndex:profiles_ux1;column:instagram_id" json:"instagram_id"`
	Username    string `gorm:"type:varchar(64);not null;uniqueIndex:profiles_ux2;column:username" json:"username"`
	FullName    string `gorm:"type:varchar(128);not null;default:'';column:full_name" json:"full_name"`

	// Audience stats, refreshed on completed scrapes
	FollowersCount int64 `gorm:"not null;default:0;column:followers_count" json:"followers_count"`
	FollowingCount int64 `gorm:"not null;default:0;column:following_count" json:"following_count"`
	PostsCount     int64 `gorm:"not null;default:0;column:posts_count" json:"posts_count"`

	IsVerified bool `gorm:"not null;default:false;column:is_verified" json:"is_verified"`
	IsBusiness bool `gorm:"not null;default:false;column:is_business" json:"is_business"`

	// IsActive gates eligibility for scraping
	IsActive      bool         `gorm:"not null;default:true;column:is_active" json:"is_active"`
	LastScrapedAt sql.NullTime `gorm:"column:last_scraped_at" json:"last_scraped_at"`

	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at" json:"updated_at"`

	// Relationships
	Workspace *Workspace `gorm:"foreignKey:WorkspaceID;references:ID" json:"-"`
	Posts     []Post     `gorm:"foreignKey:ProfileID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}
