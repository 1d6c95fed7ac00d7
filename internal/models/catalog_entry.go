package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the disposition of a cataloged object.
type Status string

const (
	StatusActive  Status = "active"
	StatusSold    Status = "sold"
	StatusDonated Status = "donated"
	StatusTossed  Status = "tossed"
)

// FallbackDescription is stored when no description could be generated.
const FallbackDescription = "Untitled Object: An object awaiting description."

// ParseStatus maps a wire value onto the Status enumeration.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusSold, StatusDonated, StatusTossed:
		return st, nil
	default:
		return "", fmt.Errorf("unrecognized status %q", s)
	}
}

// CatalogEntry is one cataloged belonging.
type CatalogEntry struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID             string    `gorm:"size:255;not null;index:idx_objects_owner_status" json:"-"`
	OriginalImageURL    string    `gorm:"type:text;not null" json:"originalImageUrl"`
	TransformedImageURL *string   `gorm:"type:text" json:"transformedImageUrl"`
	Description         string    `gorm:"type:text;not null" json:"description"`
	Status              Status    `gorm:"size:16;not null;default:'active';index:idx_objects_owner_status" json:"status"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName keeps the table name stable regardless of the struct name.
func (CatalogEntry) TableName() string {
	return "objects"
}

// BeforeCreate generates a UUID if not set
func (e *CatalogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = StatusActive
	}
	if strings.TrimSpace(e.Description) == "" {
		e.Description = FallbackDescription
	}
	return nil
}
