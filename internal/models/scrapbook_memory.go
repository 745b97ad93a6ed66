package models

import "time"

// ScrapbookMemory joins a memory into a scrapbook and carries the
// per-scrapbook display ordering. Ordering values form a single sequence
// within a scrapbook.
type ScrapbookMemory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ScrapbookID uint      `gorm:"not null;index:idx_scrapbook_ordering,unique" json:"scrapbook_id"`
	MemoryID    uint      `gorm:"not null;index" json:"memory_id"`
	Memory      *Memory   `gorm:"foreignKey:MemoryID" json:"memory,omitempty"`
	Ordering    int       `gorm:"not null;index:idx_scrapbook_ordering,unique" json:"ordering"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
