package database

import "keepsake/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Memory{},
		&models.Scrapbook{},
		&models.ScrapbookMemory{},
	}
}
