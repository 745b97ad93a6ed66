package seed

import (
	_ "embed"
	"fmt"

	"keepsake/internal/models"
	"keepsake/internal/validation"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed presets.yml
var presetsYAML []byte

// PresetAccount is a well-known account seeded on every run, defined in
// presets.yml.
type PresetAccount struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	IsAdmin  bool   `yaml:"is_admin"`
	Approved bool   `yaml:"approved"`
	Blocked  bool   `yaml:"blocked"`
}

type presetFile struct {
	Accounts []PresetAccount `yaml:"accounts"`
}

// LoadPresetAccounts parses the embedded preset file. Every account must
// satisfy the same policy real accounts do, so the demo credentials stay
// signable if the rules tighten.
func LoadPresetAccounts() ([]PresetAccount, error) {
	var f presetFile
	if err := yaml.Unmarshal(presetsYAML, &f); err != nil {
		return nil, fmt.Errorf("parse seed presets: %w", err)
	}
	for _, account := range f.Accounts {
		if err := validation.ValidateUsername(account.Username); err != nil {
			return nil, fmt.Errorf("preset account %q: %w", account.Username, err)
		}
		if err := validation.ValidateEmail(account.Email); err != nil {
			return nil, fmt.Errorf("preset account %q: %w", account.Username, err)
		}
		if err := validation.ValidatePassword(account.Password); err != nil {
			return nil, fmt.Errorf("preset account %q: %w", account.Username, err)
		}
	}
	return f.Accounts, nil
}

// Presets upserts the well-known demo accounts. Existing accounts keep their
// ID but are refreshed to the preset definition, so a demo database can
// always be signed into with the documented credentials.
func Presets(db *gorm.DB) ([]models.User, error) {
	accounts, err := LoadPresetAccounts()
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(accounts))
	for _, account := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(account.Password), bcrypt.MinCost)
		if err != nil {
			return nil, err
		}

		user := models.User{
			Username: account.Username,
			Email:    account.Email,
			Password: string(hash),
			IsAdmin:  account.IsAdmin,
			Approved: account.Approved,
			Blocked:  account.Blocked,
		}

		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "password", "is_admin", "approved", "blocked", "updated_at"}),
		}).Create(&user).Error; err != nil {
			return nil, fmt.Errorf("seed preset account %q: %w", account.Username, err)
		}

		if user.ID == 0 {
			if err := db.Where("username = ?", account.Username).First(&user).Error; err != nil {
				return nil, err
			}
		}
		users = append(users, user)
	}
	return users, nil
}
