// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account in the Keepsake application. Accounts are
// provisioned by seeding or admin tooling; there is no self-service signup.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"unique;not null" json:"username"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Blocked   bool           `gorm:"not null;default:false" json:"blocked"`
	Approved  bool           `gorm:"not null;default:false" json:"approved"`
	IsAdmin   bool           `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Memories  []Memory       `gorm:"foreignKey:UserID" json:"memories,omitempty"`
}
