// Package seed provides helpers to create demo and test data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"keepsake/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var memoryCategories = []string{
	"family", "holiday", "school", "work", "wedding", "birthday",
	"travel", "garden", "pets", "sport", "music", "street",
}

var memoryAreas = []string{
	"Town Centre", "Harbourside", "Old Market", "Riverside",
	"The Common", "Station Road", "High Street", "The Downs",
}

// Factory builds domain entities and persists them to the database. It is a
// thin helper used by seed presets and tests.
type Factory struct {
	db *gorm.DB
	r  *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) *Factory {
	seed := time.Now().UnixNano()
	gofakeit.Seed(seed)
	//nolint:gosec // weak randomness is fine for seed data
	return &Factory{db: db, r: rand.New(rand.NewSource(seed))}
}

// CreateUser constructs and persists a sample user. Optional override
// functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123!demo"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(100, 999)),
		Email:    gofakeit.Email(),
		Password: string(hash),
		Approved: true,
	}
	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildMemory constructs a memory struct without persisting it, useful for
// batching.
func (f *Factory) BuildMemory(user *models.User, overrides ...func(*models.Memory)) *models.Memory {
	date := gofakeit.DateRange(
		time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2005, 12, 31, 0, 0, 0, 0, time.UTC),
	)

	memory := &models.Memory{
		UserID:      user.ID,
		Title:       gofakeit.Sentence(4),
		Description: gofakeit.Paragraph(1, 2, 8, "\n"),
		Area:        memoryAreas[f.r.Intn(len(memoryAreas))],
		Location:    gofakeit.Street(),
		Date:        date.Format("2006"),
		Categories:  f.pickCategories(),
		Attribution: gofakeit.Name(),
		Rotation:    0,
	}

	// realistic created_at spread over the last 90 days
	daysBack := f.r.Intn(90)
	memory.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(f.r.Intn(24))*time.Hour)

	for _, override := range overrides {
		override(memory)
	}
	return memory
}

func (f *Factory) pickCategories() []string {
	count := 1 + f.r.Intn(3)
	picked := make([]string, 0, count)
	seen := map[string]bool{}
	for len(picked) < count {
		c := memoryCategories[f.r.Intn(len(memoryCategories))]
		if !seen[c] {
			seen[c] = true
			picked = append(picked, c)
		}
	}
	return picked
}

// CreateMemoriesBatch persists multiple memories in a single DB call.
func (f *Factory) CreateMemoriesBatch(memories []*models.Memory) error {
	if len(memories) == 0 {
		return nil
	}
	return f.db.Create(&memories).Error
}

// CreateScrapbook persists a scrapbook for the user and attaches the given
// memories in order.
func (f *Factory) CreateScrapbook(user *models.User, memories []*models.Memory, overrides ...func(*models.Scrapbook)) (*models.Scrapbook, error) {
	scrapbook := &models.Scrapbook{
		UserID:          user.ID,
		Title:           gofakeit.Sentence(3),
		Description:     gofakeit.Paragraph(1, 1, 10, ""),
		ModerationState: models.ModerationStateUnmoderated,
	}
	for _, override := range overrides {
		override(scrapbook)
	}

	return scrapbook, f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(scrapbook).Error; err != nil {
			return err
		}
		for i, memory := range memories {
			row := models.ScrapbookMemory{
				ScrapbookID: scrapbook.ID,
				MemoryID:    memory.ID,
				Ordering:    i + 1,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
