package model

import (
	"strings"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	// SubjectID is the stable identity-provider subject carried in JWT
	// claims; subscription records key on it, not on the row id.
	SubjectID string `json:"subject_id" gorm:"uniqueIndex;not null"`
	Email     string `json:"email" gorm:"uniqueIndex;not null"`
	Password  string `json:"-" gorm:"not null"`
	Username  string `json:"username" gorm:"uniqueIndex;not null"`

	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`

	IsVerified bool `json:"is_verified" gorm:"default:false"`
}

func (u *User) GetFullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) GetPublicProfile() map[string]interface{} {
	return map[string]interface{}{
		"id":           u.SubjectID,
		"username":     u.Username,
		"email":        u.Email,
		"full_name":    u.GetFullName(),
		"display_name": u.DisplayName,
		"avatar_url":   u.AvatarURL,
		"is_verified":  u.IsVerified,
	}
}
