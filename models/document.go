package models

import (
	"time"

	"gorm.io/gorm"
)

// Document stores metadata and a reference to the physical file on disk.
// The stored filename is always "<id>.<extension>" inside the upload folder.
type Document struct {
	ID               string         `gorm:"type:uuid;primaryKey" json:"id"`
	OriginalFilename string         `gorm:"size:255;not null" json:"original_filename"`
	StoredFilename   string         `gorm:"size:255;not null;uniqueIndex" json:"stored_filename"`
	Title            string         `gorm:"size:255;not null" json:"title"`
	Category         string         `gorm:"size:100;default:'general'" json:"category"`
	Description      string         `gorm:"type:text" json:"description"`
	Tags             []string       `gorm:"type:text;serializer:json" json:"tags"`
	UploadDate       time.Time      `json:"upload_date"`
	FileSize         int64          `json:"file_size"`
	FileHash         string         `gorm:"size:64" json:"file_hash"` // SHA256 hex
	FileExtension    string         `gorm:"size:10" json:"file_extension"`
	Version          int            `gorm:"default:1" json:"version"`
	CreatedBy        string         `gorm:"size:100" json:"created_by,omitempty"`
	IsActive         bool           `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Versions []DocumentVersion `gorm:"foreignKey:DocumentID" json:"versions,omitempty"`
}

// DocumentVersion keeps the history of changes for a document. A row is
// written for every superseded revision when a new version is uploaded.
type DocumentVersion struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID     string         `gorm:"type:uuid;not null;index" json:"document_id"`
	VersionNumber  int            `gorm:"not null" json:"version_number"`
	StoredFilename string         `gorm:"size:255;not null" json:"stored_filename"`
	FileHash       string         `gorm:"size:64" json:"file_hash"`
	CreatedBy      string         `gorm:"size:100" json:"created_by,omitempty"`
	ChangeNotes    string         `gorm:"type:text" json:"change_notes,omitempty"`
	CreatedAt      time.Time      `json:"created_date"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Document Document `gorm:"foreignKey:DocumentID" json:"-"`
}
