package models

import (
	"database/sql"
	"time"
)

// Workspace groups the profiles a team tracks together
type Workspace struct {
	ID          int64          `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name        string         `gorm:"type:varchar(100);not null;column:name" json:"name"`
	Description sql.NullString `gorm:"type:varchar(500);column:description" json:"description"`
	Color       string         `gorm:"type:varchar(16);not null;default:'#6366f1';column:color" json:"color"`
	CreatedAt   time.Time      `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;column:updated_at" json:"updated_at"`

	// Relationships
	Profiles []Profile `gorm:"foreignKey:WorkspaceID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Workspace
func (Workspace) TableName() string {
	return "workspaces"
}
