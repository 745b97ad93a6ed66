package seed

import (
	"fmt"
	"log"

	"keepsake/internal/models"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers          int
	MemoriesPerUser   int
	ScrapbooksPerUser int
	ShouldClean       bool
}

// Seed populates the database with demo data: the preset accounts plus
// generated users, each with memories and scrapbooks in a mix of moderation
// states.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Seeding %d users with %d memories and %d scrapbooks each...",
		opts.NumUsers, opts.MemoriesPerUser, opts.ScrapbooksPerUser)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Printf("warning: could not clear existing data: %v", err)
		}
	}

	presetUsers, err := Presets(db)
	if err != nil {
		return fmt.Errorf("failed to seed preset accounts: %w", err)
	}
	log.Printf("%d preset accounts ready", len(presetUsers))

	factory := NewFactory(db)

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user, err := factory.CreateUser()
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, user)
	}
	// Presets other than the blocked demo account get content too.
	for i := range presetUsers {
		if !presetUsers[i].Blocked {
			users = append(users, &presetUsers[i])
		}
	}
	log.Printf("%d users created", len(users))

	var admin *models.User
	for i := range presetUsers {
		if presetUsers[i].IsAdmin {
			admin = &presetUsers[i]
			break
		}
	}

	totalMemories := 0
	totalScrapbooks := 0
	for _, user := range users {
		memories := make([]*models.Memory, 0, opts.MemoriesPerUser)
		for i := 0; i < opts.MemoriesPerUser; i++ {
			memories = append(memories, factory.BuildMemory(user))
		}
		if err := factory.CreateMemoriesBatch(memories); err != nil {
			return fmt.Errorf("failed to create memories: %w", err)
		}
		totalMemories += len(memories)

		for i := 0; i < opts.ScrapbooksPerUser; i++ {
			selected := selectMemories(memories, factory.r.Intn(len(memories)+1))
			scrapbook, err := factory.CreateScrapbook(user, selected)
			if err != nil {
				return fmt.Errorf("failed to create scrapbook: %w", err)
			}
			totalScrapbooks++

			if admin != nil {
				if err := moderateSome(db, factory, scrapbook, admin.ID); err != nil {
					return err
				}
			}
		}
	}
	log.Printf("%d memories and %d scrapbooks created", totalMemories, totalScrapbooks)

	log.Println("Database seeding completed")
	return nil
}

func selectMemories(memories []*models.Memory, count int) []*models.Memory {
	if count > len(memories) {
		count = len(memories)
	}
	return memories[:count]
}

// moderateSome leaves roughly a third of scrapbooks unmoderated, approves a
// third and rejects the rest, so every admin queue has content.
func moderateSome(db *gorm.DB, factory *Factory, scrapbook *models.Scrapbook, adminID uint) error {
	switch factory.r.Intn(3) {
	case 0:
		return nil
	case 1:
		return applyDecision(db, scrapbook, models.ModerationStateApproved, adminID, "")
	default:
		return applyDecision(db, scrapbook, models.ModerationStateRejected, adminID, "Not suitable for the public gallery")
	}
}

func applyDecision(db *gorm.DB, scrapbook *models.Scrapbook, state models.ModerationState, adminID uint, reason string) error {
	now := db.NowFunc()
	return db.Model(scrapbook).Updates(map[string]interface{}{
		"moderation_state": state,
		"moderated_at":     now,
		"moderated_by_id":  adminID,
		"rejection_reason": reason,
	}).Error
}

func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	// Join rows first, then their owners; order matters for FK constraints.
	for _, model := range []interface{}{
		&models.ScrapbookMemory{},
		&models.Scrapbook{},
		&models.Memory{},
		&models.User{},
	} {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
