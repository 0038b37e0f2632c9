package models

import (
	"database/sql"
	"time"
)

// ScrapeRun status values. A run moves pending -> running -> {completed,
// failed}, with pending -> failed allowed for jobs rejected before start.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Scrape type constants
const (
	ScrapeTypeFull  = "full"
	ScrapeTypeReels = "reels"
)

// ScrapeRun records one execution attempt of the external scraping job
// for a profile
type ScrapeRun struct {
	ID         string `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	ProfileID  int64  `gorm:"not null;index;column:profile_id" json:"profile_id"`
	ScrapeType string `gorm:"type:varchar(16);not null;default:'full';column:scrape_type" json:"scrape_type"`

	// ExternalID is the runner's job identifier, bound once the runner
	// acknowledges the trigger
	ExternalID sql.NullString `gorm:"type:varchar(64);column:external_id" json:"external_id"`
	Status     string         `gorm:"type:varchar(16);not null;default:'pending';index;column:status" json:"status"`

	// Counters increase monotonically while the run is running
	PostsScraped int64 `gorm:"not null;default:0;column:posts_scraped" json:"posts_scraped"`
	ReelsScraped int64 `gorm:"not null;default:0;column:reels_scraped" json:"reels_scraped"`

	// ErrorMessage is set iff the run failed
	ErrorMessage sql.NullString `gorm:"type:text;column:error_message" json:"error_message"`

	// StartedAt is set on entering running; CompletedAt on reaching a
	// terminal status
	StartedAt   sql.NullTime `gorm:"column:started_at" json:"started_at"`
	CompletedAt sql.NullTime `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt   time.Time    `gorm:"not null;column:created_at" json:"created_at"`

	// Relationships
	Profile *Profile `gorm:"foreignKey:ProfileID;references:ID" json:"-"`
}

// TableName specifies the table name for ScrapeRun
func (ScrapeRun) TableName() string {
	return "scrape_runs"
}

// IsTerminal reports whether the run reached a final status
func (r *ScrapeRun) IsTerminal() bool {
	return IsTerminalStatus(r.Status)
}

// IsTerminalStatus reports whether a status value is final
func IsTerminalStatus(status string) bool {
	return status == RunStatusCompleted || status == RunStatusFailed
}

// ValidStatus reports whether a status value is one of the known states
func ValidStatus(status string) bool {
	switch status {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a run may move from one status to another
func CanTransition(from, to string) bool {
	switch from {
	case RunStatusPending:
		return to == RunStatusRunning || to == RunStatusFailed
	case RunStatusRunning:
		return to == RunStatusCompleted || to == RunStatusFailed
	}
	// completed and failed are terminal
	return false
}
