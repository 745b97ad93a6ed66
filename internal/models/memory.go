package models

import "time"

// Memory is a single uploaded content item with metadata, owned by one user.
// The uploaded source file lives on disk under the upload root; SourcePath
// and ThumbnailPath are relative to that root.
type Memory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	User           *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title          string    `gorm:"size:200;not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	SourceFilename string    `gorm:"size:255" json:"source_filename"`
	SourcePath     string    `gorm:"size:512" json:"source_path"`
	ThumbnailPath  string    `gorm:"size:512" json:"thumbnail_path"`
	// Rotation is the stored display rotation in degrees (0, 90, 180, 270).
	// It is applied when the image is served, not when it is stored.
	Rotation    int       `gorm:"not null;default:0" json:"rotation"`
	Area        string    `gorm:"size:120" json:"area"`
	Location    string    `gorm:"size:200" json:"location"`
	Date        string    `gorm:"size:40" json:"date"`
	Categories  []string  `gorm:"serializer:json" json:"categories"`
	Attribution string    `gorm:"size:200" json:"attribution"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CanModify reports whether the given user may view or change this memory.
// Only the owner qualifies; callers surface a failed check as not-found so
// that other users' resources are indistinguishable from absent ones.
func (m *Memory) CanModify(userID uint) bool {
	return userID != 0 && m.UserID == userID
}
