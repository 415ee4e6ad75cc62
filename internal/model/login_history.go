// internal/model/login_history.go
package model

import "time"

type LoginHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index;not null" json:"-"`
	Device    string    `gorm:"size:255" json:"device"` // Chrome on Windows, Safari on iPhone
	IP        string    `gorm:"size:50" json:"ip"`      // IP adresi
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
