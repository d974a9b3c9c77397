package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document represents one editable document in the platform store.
// The row is the resolved initial state for a collaborative session; while a
// session is live the in-memory copy held by the session layer is
// authoritative, and the row only catches up through snapshot writes.
type Document struct {
	ID           string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	Title        string         `json:"title" gorm:"type:text;not null"`
	Content      string         `json:"content" gorm:"type:text;not null"`
	LastModified time.Time      `json:"lastModified" gorm:"column:last_modified;autoUpdateTime"`
	CreatedAt    time.Time      `json:"createdAt" gorm:"column:created_at;autoCreateTime"`
	DeletedAt    gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"column:deleted_at;index"` // Soft delete support
}

// BeforeCreate hook generates a UUID before inserting.
// The editor client creates fresh untitled documents with its own id, so an
// id supplied by the caller is kept as-is.
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

type DocumentCreate struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type DocumentUpdate struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}
