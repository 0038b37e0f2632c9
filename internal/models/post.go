package models

import (
	"database/sql"
	"time"
)

// Post type constants
const (
	PostTypeImage   = "image"
	PostTypeVideo   = "video"
	PostTypeSidecar = "sidecar"
)

// Post represents a scraped Instagram post. Posts are immutable once
// created except for count refreshes on re-scrape; InstagramID is the
// de-duplication key within a profile.
type Post struct {
	ID          int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ProfileID   int64  `gorm:"not null;index;uniqueIndex:posts_ux1;column:profile_id" json:"profile_id"`
	InstagramID string `gorm:"type:varchar(64);not null;uniqueIndex:posts_ux1;column:instagram_id" json:"instagram_id"`
	Shortcode   string `gorm:"type:varchar(32);not null;default:'';column:shortcode" json:"shortcode"`
	Caption     string `gorm:"type:text;not null;default:'';column:caption" json:"caption"`
	PostType    string `gorm:"type:varchar(16);not null;default:'image';column:post_type" json:"post_type"`

	// Engagement counters
	LikesCount     int64         `gorm:"not null;default:0;column:likes_count" json:"likes_count"`
	CommentsCount  int64         `gorm:"not null;default:0;column:comments_count" json:"comments_count"`
	VideoViewCount sql.NullInt64 `gorm:"column:video_view_count" json:"video_view_count"`
	VideoPlayCount sql.NullInt64 `gorm:"column:video_play_count" json:"video_play_count"`

	IsReel           bool `gorm:"not null;default:false;column:is_reel" json:"is_reel"`
	IsPinned         bool `gorm:"not null;default:false;column:is_pinned" json:"is_pinned"`
	IsSponsored      bool `gorm:"not null;default:false;column:is_sponsored" json:"is_sponsored"`
	CommentsDisabled bool `gorm:"not null;default:false;column:comments_disabled" json:"comments_disabled"`

	Location sql.NullString `gorm:"type:varchar(255);column:location" json:"location"`

	// PostedAt may be unknown at scrape time; ScrapedAt is always set
	PostedAt  sql.NullTime `gorm:"column:posted_at" json:"posted_at"`
	ScrapedAt time.Time    `gorm:"not null;column:scraped_at" json:"scraped_at"`

	// Relationships
	Profile *Profile `gorm:"foreignKey:ProfileID;references:ID" json:"-"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// EffectiveDate returns the date used for time-window filtering:
// posted_at when known, scraped_at otherwise.
func (p *Post) EffectiveDate() time.Time {
	if p.PostedAt.Valid {
		return p.PostedAt.Time
	}
	return p.ScrapedAt
}
