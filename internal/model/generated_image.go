package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ImageTypeGenerated = "generated"
	ImageTypeEdited    = "edited"
)

// GeneratedImage is one billable generation result stored for the history
// view.
type GeneratedImage struct {
	gorm.Model
	UserID       string         `json:"user_id" gorm:"index;not null"`
	Prompt       string         `json:"prompt" gorm:"not null"`
	ImageType    string         `json:"image_type" gorm:"not null;default:'generated'"`
	ImageURL     string         `json:"image_url" gorm:"not null"`
	ThumbnailURL string         `json:"thumbnail_url"`
	ObjectKey    string         `json:"-"`
	Params       datatypes.JSON `json:"params"` // model, size, response format
}
